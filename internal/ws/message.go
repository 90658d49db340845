package ws

import (
	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/voiceflow"
)

type EventType string

const (
	// Сервер → вкладка.
	EventSession   EventType = "session"
	EventNavigate  EventType = "navigate"
	EventVoiceStep EventType = "voice_step"
	EventError     EventType = "error"

	// Вкладка → сервер.
	EventRoute        EventType = "route"
	EventVoiceAdvance EventType = "voice_advance"
	EventVoiceReplay  EventType = "voice_replay"
)

// IncomingMessage — то, что присылает вкладка.
type IncomingMessage struct {
	Type EventType `json:"type"`
	// Path — для route: путь, на который перешла вкладка.
	Path string `json:"path,omitempty"`
}

// OutgoingMessage — событие, которое сервер отправляет вкладке.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NavigatePayload — вкладка должна заменить текущую запись истории на Location.
type NavigatePayload struct {
	Location string `json:"location"`
	Replace  bool   `json:"replace"`
	Decision string `json:"decision"`
}

type VoiceStepPayload struct {
	voiceflow.Snapshot
	Hospitals []voiceflow.MockHospital `json:"hospitals,omitempty"`
}

func navigatePayload(out guard.Outcome) NavigatePayload {
	return NavigatePayload{Location: out.Location, Replace: out.Replace, Decision: out.Decision.String()}
}

func voiceStepPayload(s voiceflow.Snapshot) VoiceStepPayload {
	p := VoiceStepPayload{Snapshot: s}
	if voiceflow.Index(s.Current) >= voiceflow.Index(voiceflow.StepResults) {
		p.Hospitals = voiceflow.Hospitals
	}
	return p
}
