package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/feedback"
	"github.com/danchettos12/EntrevistIA/internal/flow"
	"github.com/danchettos12/EntrevistIA/internal/interview"
	"github.com/danchettos12/EntrevistIA/internal/middleware"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AppHandler exposes the per-client controllers over HTTP. Every mutation answers with the
// client's snapshot.
type AppHandler struct {
	registry *flow.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewAppHandler serves the registry's clients. allowedOrigins gates the events socket and
// should match the CORS configuration.
func NewAppHandler(registry *flow.Registry, allowedOrigins []string, logger *zap.Logger) *AppHandler {
	return &AppHandler{
		registry: registry,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigins(allowedOrigins)},
		logger:   logger,
	}
}

type RegisterResponse struct {
	Result   auth.RegisterResult `json:"result"`
	Snapshot flow.Snapshot       `json:"snapshot"`
}

type LoginResponse struct {
	Session  *auth.Session `json:"session"`
	Snapshot flow.Snapshot `json:"snapshot"`
}

type RecordingResponse struct {
	Started  bool          `json:"started"`
	Snapshot flow.Snapshot `json:"snapshot"`
}

type TranscriptResponse struct {
	Response string        `json:"response"`
	Snapshot flow.Snapshot `json:"snapshot"`
}

type FeedbackResponse struct {
	Overview feedback.Overview  `json:"overview"`
	State    flow.FeedbackState `json:"state"`
}

type DocumentationResponse struct {
	Content string `json:"content"`
}

func (h *AppHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.registry.Create(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("Client created", zap.String("client_id", ctrl.ID()))
	utils.JSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *AppHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	utils.JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *AppHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Delete(chi.URLParam(r, "clientID")) {
		utils.Error(w, http.StatusNotFound, "client_not_found", "Unknown client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppHandler) OpenAuth(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.AuthOpenRequest](r)
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.OpenAuth(req.Mode)
	})
}

func (h *AppHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.RegisterRequest](r)
	res, err := ctrl.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	switch res.Status {
	case auth.StatusPendingConfirmation:
		status = http.StatusAccepted
	case auth.StatusFailed:
		status = registerFailureStatus(res.Code)
	}
	utils.JSON(w, status, RegisterResponse{Result: res, Snapshot: ctrl.Snapshot()})
}

func registerFailureStatus(code string) int {
	switch code {
	case "email_taken":
		return http.StatusConflict
	case "unavailable", "mail_failed":
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (h *AppHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.LoginRequest](r)
	session, err := ctrl.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, LoginResponse{Session: session, Snapshot: ctrl.Snapshot()})
}

func (h *AppHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.Logout(r.Context())
	})
}

func (h *AppHandler) UpdatePreferredRole(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.PreferredRoleRequest](r)
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		_, err := ctrl.UpdatePreferredRole(r.Context(), req.PreferredRole)
		return err
	})
}

func (h *AppHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.Back(r.Context())
	})
}

func (h *AppHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.Close(r.Context())
	})
}

func (h *AppHandler) OpenSetup(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.OpenSetup()
	})
}

func (h *AppHandler) OpenDocumentation(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.OpenDocumentation()
	})
}

func (h *AppHandler) Documentation(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	content, err := ctrl.Documentation()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, DocumentationResponse{Content: content})
}

func (h *AppHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	view, err := ctrl.Dashboard()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

func (h *AppHandler) ViewSession(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.ViewSession(chi.URLParam(r, "sessionID"))
	})
}

func (h *AppHandler) StartInterview(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	cfg := middleware.GetValidatedRequest[*models.SessionConfig](r)
	if _, err := ctrl.StartInterview(r.Context(), *cfg); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *AppHandler) GetInterview(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(*interview.Runner) error { return nil })
}

func (h *AppHandler) SetResponse(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.ResponseTextRequest](r)
	h.withRunner(w, r, func(runner *interview.Runner) error {
		return runner.SetResponse(req.Text)
	})
}

func (h *AppHandler) StartRecording(w http.ResponseWriter, r *http.Request) {
	ctrl, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	req := middleware.GetValidatedRequest[*models.RecordingStartRequest](r)
	started, err := runner.StartRecording(req.MimeType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, RecordingResponse{Started: started, Snapshot: ctrl.Snapshot()})
}

// RecordingChunk appends the raw request body to the open capture.
func (h *AppHandler) RecordingChunk(w http.ResponseWriter, r *http.Request) {
	ctrl, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, interview.MaxAudioBytes))
	if err != nil {
		utils.Error(w, http.StatusRequestEntityTooLarge, "recording_too_large", "Audio chunk is too large")
		return
	}
	if err := runner.AppendAudio(chunk); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *AppHandler) StopRecording(w http.ResponseWriter, r *http.Request) {
	ctrl, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	text, err := runner.StopRecording(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, TranscriptResponse{Response: text, Snapshot: ctrl.Snapshot()})
}

func (h *AppHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *interview.Runner) error {
		return runner.Submit(r.Context())
	})
}

func (h *AppHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *interview.Runner) error {
		return runner.RetryFinalize(r.Context())
	})
}

func (h *AppHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	presenter, state, err := ctrl.Feedback()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, FeedbackResponse{Overview: presenter.Overview(), State: state})
}

func (h *AppHandler) FeedbackQuestion(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid_index", "Question index must be an integer")
		return
	}
	presenter, _, err := ctrl.Feedback()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	view, err := presenter.Question(index)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

func (h *AppHandler) FeedbackMirror(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	presenter, _, err := ctrl.Feedback()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, presenter.Mirror())
}

func (h *AppHandler) SaveFeedback(w http.ResponseWriter, r *http.Request) {
	h.withClient(w, r, func(ctrl *flow.Controller) error {
		return ctrl.RetrySave(r.Context())
	})
}

func (h *AppHandler) client(w http.ResponseWriter, r *http.Request) (*flow.Controller, bool) {
	ctrl, ok := h.registry.Get(chi.URLParam(r, "clientID"))
	if !ok {
		utils.Error(w, http.StatusNotFound, "client_not_found", "Unknown client")
		return nil, false
	}
	return ctrl, true
}

func (h *AppHandler) runner(w http.ResponseWriter, r *http.Request) (*flow.Controller, *interview.Runner, bool) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return nil, nil, false
	}
	runner, err := ctrl.Runner()
	if err != nil {
		writeError(w, h.logger, err)
		return nil, nil, false
	}
	return ctrl, runner, true
}

// withClient runs fn against the client and answers with its snapshot.
func (h *AppHandler) withClient(w http.ResponseWriter, r *http.Request, fn func(*flow.Controller) error) {
	ctrl, ok := h.client(w, r)
	if !ok {
		return
	}
	if err := fn(ctrl); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *AppHandler) withRunner(w http.ResponseWriter, r *http.Request, fn func(*interview.Runner) error) {
	ctrl, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	if err := fn(runner); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, ctrl.Snapshot())
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
