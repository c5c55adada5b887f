package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/utils"
)

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "degraded" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"` // "ready" | "not_ready"
	Service string                    `json:"service"`
	Mode    string                    `json:"mode"`
	Checks  map[string]ReadinessCheck `json:"checks"`
}

// AIStatus is the part of the AI gateway readiness looks at.
type AIStatus interface {
	ProviderName() string
	Configured() bool
}

type TemplateSource interface {
	GetTemplates() map[string][]string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	ai        AIStatus
	templates TemplateSource
	store     Pinger
	auth      Pinger
	mode      string
}

func NewHealthHandler(ai AIStatus, templates TemplateSource, store, auth Pinger, mode string) *HealthHandler {
	return &HealthHandler{ai: ai, templates: templates, store: store, auth: auth, mode: mode}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "entrevistia",
		"version": "1.0.0",
	})
}

// ReadyzHandler fails on missing templates or unreachable storage. A missing AI key only
// degrades the service, since questions fall back to a fixed prompt.
func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]ReadinessCheck)
	allChecksPass := true

	switch {
	case handler.ai == nil:
		checks["provider"] = ReadinessCheck{Status: "failed", Message: "AI gateway not initialized"}
		allChecksPass = false
	case !handler.ai.Configured():
		checks["provider"] = ReadinessCheck{Status: "degraded", Message: handler.ai.ProviderName() + " is not configured"}
	default:
		checks["provider"] = ReadinessCheck{Status: "ok"}
	}

	if handler.templates == nil || len(handler.templates.GetTemplates()) == 0 {
		checks["prompt_manager"] = ReadinessCheck{Status: "failed", Message: "No prompt templates loaded"}
		allChecksPass = false
	} else {
		checks["prompt_manager"] = ReadinessCheck{Status: "ok"}
	}

	for name, p := range map[string]Pinger{"store": handler.store, "auth": handler.auth} {
		if p == nil {
			checks[name] = ReadinessCheck{Status: "failed", Message: name + " not initialized"}
			allChecksPass = false
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = ReadinessCheck{Status: "failed", Message: err.Error()}
			allChecksPass = false
			continue
		}
		checks[name] = ReadinessCheck{Status: "ok"}
	}

	response := ReadinessResponse{Service: "entrevistia", Mode: handler.mode, Checks: checks}
	if allChecksPass {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
	} else {
		response.Status = "not_ready"
		utils.JSON(writer, http.StatusServiceUnavailable, response)
	}
}
