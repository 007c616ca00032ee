package api

import (
	"net/http"
	"strconv"
	"strings"

	"surfpass/internal/checkin"
	"surfpass/internal/constants"
	"surfpass/internal/ledger"
	"surfpass/internal/models"
)

type DashboardHandler struct {
	ledger   *ledger.Ledger
	registry *checkin.Registry
}

func NewDashboardHandler(l *ledger.Ledger, registry *checkin.Registry) *DashboardHandler {
	return &DashboardHandler{ledger: l, registry: registry}
}

type DashboardResponse struct {
	Leaderboard []ledger.LeaderboardEntry `json:"leaderboard"`
	Totals      []models.AccountTotal     `json:"totals,omitempty"`
	CheckIns    *checkin.Stats            `json:"checkIns"`
}

// GET /api/v1/dashboard?top=
// Per-account totals are only included for staff and admins.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	top := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, "top", "top must be a positive number")
			return
		}
		top = n
	}

	board, err := h.ledger.Leaderboard(r.Context(), top)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := DashboardResponse{Leaderboard: board, CheckIns: stats}
	if account := GetAccount(r); account != nil && account.Role != models.RoleUser {
		totals, err := h.ledger.TotalsByAccount(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp.Totals = totals
	}
	success(w, "", resp)
}
