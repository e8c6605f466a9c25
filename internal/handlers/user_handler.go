package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"usermgmt/internal/models"
	"usermgmt/internal/provisioner"
	"usermgmt/internal/reset"
)

type UserHandler struct {
	prov   *provisioner.Provisioner
	engine *reset.Engine
	v      *validator.Validate
}

func NewUserHandler(prov *provisioner.Provisioner, engine *reset.Engine) *UserHandler {
	return &UserHandler{
		prov:   prov,
		engine: engine,
		v:      validator.New(),
	}
}

// ImportUsers bulk-creates accounts at the identity provider and mails a
// set-password link to every account that was accepted.
func (h *UserHandler) ImportUsers(w http.ResponseWriter, r *http.Request) {
	var req models.ImportUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.v.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	report := h.prov.Provision(r.Context(), req.Users)
	notifications := h.engine.DispatchResetLinks(r.Context(), report.Imported)

	writeJSON(w, http.StatusOK, map[string]any{
		"imported":      report.Imported,
		"rejected":      report.Rejected,
		"notifications": notifications,
	})
}
