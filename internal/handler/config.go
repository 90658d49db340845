package handler

import (
	"net/http"

	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/voiceflow"
)

// ConfigHandler отдаёт публичные параметры консоли (без сессии): пресеты фильтра дат
// и шаги демо-звонка.
type ConfigHandler struct {
	apiBaseURL string
}

func NewConfigHandler(apiBaseURL string) *ConfigHandler {
	return &ConfigHandler{apiBaseURL: apiBaseURL}
}

type consoleConfig struct {
	APIBaseURL     string               `json:"apiBaseUrl,omitempty"`
	DateFilters    []string             `json:"dateFilters"`
	DefaultFilter  string               `json:"defaultFilter"`
	VoiceFlowSteps []voiceflow.StepInfo `json:"voiceFlowSteps"`
}

func (h *ConfigHandler) GetConsoleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, consoleConfig{
		APIBaseURL:     h.apiBaseURL,
		DateFilters:    apiclient.DateFilterPresets(),
		DefaultFilter:  apiclient.FilterToday,
		VoiceFlowSteps: voiceflow.Steps,
	})
}
