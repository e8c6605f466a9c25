package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"usermgmt/internal/logger"
	"usermgmt/internal/models"
	"usermgmt/internal/reset"
)

type AuthHandler struct {
	engine *reset.Engine
	v      *validator.Validate
}

func NewAuthHandler(engine *reset.Engine) *AuthHandler {
	return &AuthHandler{
		engine: engine,
		v:      validator.New(),
	}
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	// Always 200 to avoid user enumeration; failures are only logged.
	if err := h.engine.RequestReset(r.Context(), req.Email); err != nil {
		logger.L().Warn("reset request failed", zap.String("email", req.Email), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	outcome, err := h.engine.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "persistence_failure", "Failed to reset password")
		return
	}

	switch outcome.Kind {
	case reset.Completed:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Password reset successful"})
	case reset.MissingInput:
		writeJSONError(w, http.StatusBadRequest, "missing_input", "Token and new password are required")
	case reset.InvalidToken:
		writeJSONError(w, http.StatusBadRequest, "invalid_token", "Invalid token")
	case reset.TokenExpired:
		writeJSONError(w, http.StatusBadRequest, "token_expired", "Token has expired")
	case reset.PasswordUpdateFailed:
		writeJSONError(w, http.StatusBadGateway, "password_update_failed", "Password change was rejected, try again")
	case reset.FinalizeFailed:
		writeJSONError(w, http.StatusInternalServerError, "finalize_failed", "Password changed but token could not be closed")
	default:
		writeJSONError(w, http.StatusInternalServerError, "reset_failed", "Failed to reset password")
	}
}
