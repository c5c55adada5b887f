package handlers

import (
	"net/http"

	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/utils"
	"go.uber.org/zap"
)

type AuthHandler struct {
	gateway auth.Gateway
	logger  *zap.Logger
}

func NewAuthHandler(gateway auth.Gateway, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{gateway: gateway, logger: logger}
}

// ConfirmHandler completes an emailed registration link. Clients waiting on that account
// are signed in through the identity notification.
func (h *AuthHandler) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.Error(w, http.StatusBadRequest, "missing_token", "Confirmation token is required")
		return
	}

	session, err := h.gateway.Confirm(r.Context(), token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("Account confirmed", zap.String("user_id", session.User.ID))
	utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: session})
}
