package handlers

import (
	"errors"
	"net/http"

	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/feedback"
	"github.com/danchettos12/EntrevistIA/internal/flow"
	"github.com/danchettos12/EntrevistIA/internal/interview"
	"github.com/danchettos12/EntrevistIA/internal/llm"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/store"
	"github.com/danchettos12/EntrevistIA/internal/utils"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// checked in order; the first match wins
var errorMappings = []errorMapping{
	{flow.ErrNotAuthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrEmailNotConfirmed, http.StatusForbidden, "email_not_confirmed"},
	{auth.ErrInvalidConfirmation, http.StatusBadRequest, "invalid_confirmation"},
	{auth.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{auth.ErrNotSupported, http.StatusNotFound, "not_supported"},
	{flow.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{flow.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{flow.ErrNoInterview, http.StatusConflict, "no_interview"},
	{flow.ErrNothingToSave, http.StatusConflict, "nothing_to_save"},
	{flow.ErrSaveInProgress, http.StatusConflict, "save_in_progress"},
	{flow.ErrDisposed, http.StatusGone, "client_gone"},
	{feedback.ErrQuestionOutOfRange, http.StatusNotFound, "question_not_found"},
	{interview.ErrEmptyResponse, http.StatusBadRequest, "empty_response"},
	{interview.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{interview.ErrAbandoned, http.StatusConflict, "interview_abandoned"},
	{interview.ErrTranscriptionInFlight, http.StatusConflict, "transcription_in_flight"},
	{interview.ErrBusy, http.StatusConflict, "ai_busy"},
	{interview.ErrNotRecording, http.StatusConflict, "not_recording"},
	{interview.ErrRecordingTooLarge, http.StatusRequestEntityTooLarge, "recording_too_large"},
	{store.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// writeError renders err as an ErrorResponse with the matching status.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var errResp *models.ErrorResponse
	if errors.As(err, &errResp) {
		utils.JSON(w, http.StatusBadRequest, *errResp)
		return
	}

	if errors.Is(err, interview.ErrAnalysisFailed) || errors.Is(err, interview.ErrSummaryFailed) {
		if llm.ErrorCode(err) == llm.ErrCodeNotConfigured {
			utils.Error(w, http.StatusServiceUnavailable, "ai_not_configured", "AI service is not configured")
			return
		}
		code := "ai_error"
		if c := llm.ErrorCode(err); c != "" {
			code = c
		}
		utils.Error(w, http.StatusBadGateway, code, err.Error())
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			utils.Error(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Error("Unhandled request error", zap.Error(err))
	utils.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}
