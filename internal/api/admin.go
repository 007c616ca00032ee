package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"surfpass/internal/approval"
	"surfpass/internal/constants"
	"surfpass/internal/models"
)

type AdminHandler struct {
	workflow *approval.Workflow
	feed     FeedSessions
}

func NewAdminHandler(workflow *approval.Workflow, feed FeedSessions) *AdminHandler {
	return &AdminHandler{workflow: workflow, feed: feed}
}

// GET /api/v1/admin/registrations?role=
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	var role models.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		parsed, err := models.ParseRole(raw)
		if err != nil || parsed == models.RoleUser {
			writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, "role", "role must be STAFF or ADMIN")
			return
		}
		role = parsed
	}

	pending, err := h.workflow.ListPending(r.Context(), GetAccount(r), role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	success(w, "", pending)
}

type DecisionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve deny"`
}

// POST /api/v1/admin/registrations/{id}/decision
func (h *AdminHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	account, err := h.workflow.Decide(r.Context(), GetAccount(r), chi.URLParam(r, "id"), approval.Action(req.Action))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	success(w, "Registration "+string(account.RegistrationStatus), account)
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// POST /api/v1/admin/accounts/{id}/active
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	account, err := h.workflow.SetActive(r.Context(), GetAccount(r), chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !account.IsActive {
		h.feed.DisconnectAccount(account.ID)
	}
	success(w, "Account updated", account)
}
