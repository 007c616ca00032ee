package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"surfpass/internal/checkin"
	"surfpass/internal/constants"
	"surfpass/internal/ledger"
	"surfpass/internal/mediaurl"
	"surfpass/internal/models"
)

type StaffHandler struct {
	ledger   *ledger.Ledger
	registry *checkin.Registry
	baseURL  string
}

func NewStaffHandler(l *ledger.Ledger, registry *checkin.Registry, baseURL string) *StaffHandler {
	return &StaffHandler{ledger: l, registry: registry, baseURL: baseURL}
}

type RecordExpenseRequest struct {
	AccountID   string `json:"accountId" validate:"required,max=32"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=500"`
	Category    string `json:"category" validate:"omitempty,max=40"`
	PhotoRef    string `json:"photoRef" validate:"omitempty,max=512"`
}

// ExpenseResponse adds resolved photo URLs to a ledger entry.
type ExpenseResponse struct {
	*models.ExpenseEntry
	PhotoURL        string `json:"photoUrl,omitempty"`
	PhotoPreviewURL string `json:"photoPreviewUrl,omitempty"`
}

func (h *StaffHandler) expenseResponse(entry *models.ExpenseEntry) ExpenseResponse {
	resp := ExpenseResponse{ExpenseEntry: entry}
	if entry.PhotoRef != nil {
		resp.PhotoURL = mediaurl.Receipt(h.baseURL, *entry.PhotoRef)
		resp.PhotoPreviewURL = mediaurl.ReceiptPreview(h.baseURL, *entry.PhotoRef)
	}
	return resp
}

// POST /api/v1/staff/expenses
func (h *StaffHandler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req RecordExpenseRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	photoRef := ""
	if strings.TrimSpace(req.PhotoRef) != "" {
		ref, found := mediaurl.ParseRef(req.PhotoRef)
		if !found {
			writeFieldError(w, http.StatusBadRequest, constants.ErrCodePhotoInvalid, "photoRef", ledger.ErrInvalidPhoto.Error())
			return
		}
		photoRef = ref
	}

	entry, err := h.ledger.Record(r.Context(), GetAccount(r), ledger.RecordInput{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		PhotoRef:    photoRef,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created(w, "Expense recorded", h.expenseResponse(entry))
}

type AmendExpenseRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=500"`
}

// PATCH /api/v1/staff/expenses/{id}
func (h *StaffHandler) AmendExpense(w http.ResponseWriter, r *http.Request) {
	var req AmendExpenseRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	entry, err := h.ledger.Amend(r.Context(), GetAccount(r), chi.URLParam(r, "id"), req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	success(w, "Expense amended", h.expenseResponse(entry))
}

// GET /api/v1/staff/expenses?account=
func (h *StaffHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account"))
	if accountID == "" {
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, "account", "account is required")
		return
	}

	entries, err := h.ledger.Entries(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := make([]ExpenseResponse, len(entries))
	for i, entry := range entries {
		resp[i] = h.expenseResponse(entry)
	}
	success(w, "", resp)
}

type ScanRequest struct {
	Payload string `json:"payload" validate:"required,max=2048"`
}

// POST /api/v1/staff/scan
func (h *StaffHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	result, err := h.registry.Scan(r.Context(), GetAccount(r), req.Payload)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	success(w, result.Message, result)
}

type CheckInRequest struct {
	AccountID string `json:"accountId" validate:"required,max=32"`
}

type CheckInResponse struct {
	CheckIn        *models.CheckIn `json:"checkIn"`
	AlreadyChecked bool            `json:"alreadyCheckedIn"`
}

// POST /api/v1/staff/checkins
func (h *StaffHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	record, isNew, err := h.registry.CheckIn(r.Context(), GetAccount(r), strings.ToUpper(strings.TrimSpace(req.AccountID)))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := CheckInResponse{CheckIn: record, AlreadyChecked: !isNew}
	if isNew {
		created(w, "Checked in", resp)
		return
	}
	success(w, "Already checked in", resp)
}
