package api

import (
	"net/http"

	"surfpass/internal/referral"
)

type AccountHandler struct {
	referrals *referral.Graph
}

func NewAccountHandler(referrals *referral.Graph) *AccountHandler {
	return &AccountHandler{referrals: referrals}
}

// GET /api/v1/me
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	account := GetAccount(r)
	if account == nil {
		unauthenticated(w)
		return
	}
	success(w, "", account)
}

type AttachReferralRequest struct {
	ReferralCode string `json:"referralCode" validate:"required,max=32"`
}

// POST /api/v1/me/referral
func (h *AccountHandler) AttachReferral(w http.ResponseWriter, r *http.Request) {
	account := GetAccount(r)
	if account == nil {
		unauthenticated(w)
		return
	}

	var req AttachReferralRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	referrer, err := h.referrals.Attach(r.Context(), account.ID, req.ReferralCode)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	success(w, "Referral code applied", map[string]string{
		"referredBy":       referrer.ID,
		"referrerFullName": referrer.FullName,
	})
}

// GET /api/v1/me/referrals
func (h *AccountHandler) GetReferrals(w http.ResponseWriter, r *http.Request) {
	account := GetAccount(r)
	if account == nil {
		unauthenticated(w)
		return
	}

	stats, err := h.referrals.Stats(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	success(w, "", stats)
}
