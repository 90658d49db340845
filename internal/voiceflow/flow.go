// Package voiceflow — сценарий демо-звонка: фиксированная последовательность шагов
// с ручным переходом вперёд и повтором. Проверок переходов нет — только список преемников.
package voiceflow

import "sync"

type Step string

const (
	StepIncoming     Step = "incoming"
	StepGreeting     Step = "greeting"
	StepIntent       Step = "intent"
	StepResults      Step = "results"
	StepConfirmation Step = "confirmation"
	StepSuccess      Step = "success"
)

type StepInfo struct {
	ID    Step   `json:"id"`
	Label string `json:"label"`
}

// Steps — порядок шагов для индикатора прогресса.
var Steps = []StepInfo{
	{ID: StepIncoming, Label: "Incoming Call"},
	{ID: StepGreeting, Label: "AI Greeting"},
	{ID: StepIntent, Label: "Patient Intent"},
	{ID: StepResults, Label: "Hospital Results"},
	{ID: StepConfirmation, Label: "Booking"},
	{ID: StepSuccess, Label: "Success"},
}

var successor = map[Step]Step{
	StepIncoming:     StepGreeting,
	StepGreeting:     StepIntent,
	StepIntent:       StepResults,
	StepResults:      StepConfirmation,
	StepConfirmation: StepSuccess,
}

// Index возвращает позицию шага в Steps или -1.
func Index(s Step) int {
	for i, info := range Steps {
		if info.ID == s {
			return i
		}
	}
	return -1
}

// MockHospital — статичные результаты поиска, которые «озвучивает» агент.
type MockHospital struct {
	Name      string `json:"name"`
	Distance  string `json:"distance"`
	Specialty string `json:"specialty"`
	Available string `json:"available"`
}

var Hospitals = []MockHospital{
	{Name: "City General Hospital", Distance: "2.3 mi", Specialty: "Cardiology", Available: "Today at 3:00 PM"},
	{Name: "St. Mary Medical Center", Distance: "3.1 mi", Specialty: "Cardiology", Available: "Tomorrow at 10:00 AM"},
	{Name: "Metro Health Clinic", Distance: "4.5 mi", Specialty: "Cardiology", Available: "Today at 5:00 PM"},
}

// Snapshot — текущее положение демо для отправки во вкладку.
type Snapshot struct {
	Current Step       `json:"current"`
	Index   int        `json:"index"`
	Steps   []StepInfo `json:"steps"`
	Done    bool       `json:"done"`
}

// Flow — состояние демо одной вкладки.
type Flow struct {
	mu      sync.Mutex
	current Step
}

func New() *Flow {
	return &Flow{current: StepIncoming}
}

func (f *Flow) Current() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Advance переходит к следующему шагу; на последнем шаге ничего не делает.
func (f *Flow) Advance() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if next, ok := successor[f.current]; ok {
		f.current = next
	}
	return f.snapshotLocked()
}

// Replay возвращает демо к входящему звонку.
func (f *Flow) Replay() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = StepIncoming
	return f.snapshotLocked()
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Snapshot {
	return Snapshot{
		Current: f.current,
		Index:   Index(f.current),
		Steps:   Steps,
		Done:    f.current == StepSuccess,
	}
}
