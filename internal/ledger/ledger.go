package ledger

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"surfpass/internal/constants"
	"surfpass/internal/db"
	"surfpass/internal/models"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive whole number")
	ErrInvalidEntry    = errors.New("description is required")
	ErrInvalidPhoto    = errors.New("photo reference does not exist")
	ErrAccountNotFound = errors.New("account not found")
	ErrEntryNotFound   = errors.New("expense entry not found")
	ErrForbidden       = errors.New("only staff and admins can change the ledger")
)

const (
	DefaultCategory = "general"

	EventExpenseRecorded = "EXPENSE_RECORDED"
	EventExpenseAmended  = "EXPENSE_AMENDED"
)

// PhotoStore knows which receipt photos have been uploaded.
type PhotoStore interface {
	Exists(ref string) bool
}

// Publisher fans ledger changes out to live dashboards. It may be nil.
type Publisher interface {
	Publish(event string, payload any)
}

type RecordInput struct {
	AccountID   string
	Amount      int64
	Description string
	Category    string
	PhotoRef    string
}

type LeaderboardEntry struct {
	Rank int `json:"rank"`
	models.AccountTotal
}

// ExpenseEvent is published after every write.
type ExpenseEvent struct {
	Entry        *models.ExpenseEntry `json:"entry"`
	AccountTotal int64                `json:"accountTotal"`
}

type Ledger struct {
	expenses  *db.ExpenseRepository
	accounts  *db.AccountRepository
	photos    PhotoStore
	publisher Publisher
	sanitizer *bluemonday.Policy
}

func New(expenses *db.ExpenseRepository, accounts *db.AccountRepository, photos PhotoStore, publisher Publisher) *Ledger {
	return &Ledger{
		expenses:  expenses,
		accounts:  accounts,
		photos:    photos,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Record appends an entry for an attendee account.
func (l *Ledger) Record(ctx context.Context, actor *models.Account, in RecordInput) (*models.ExpenseEntry, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	description := l.clean(in.Description)
	if description == "" {
		return nil, ErrInvalidEntry
	}
	category := strings.ToLower(l.clean(in.Category))
	if category == "" {
		category = DefaultCategory
	}

	account, err := l.accounts.FindByID(ctx, strings.TrimSpace(in.AccountID))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	var photoRef *string
	if ref := strings.TrimSpace(in.PhotoRef); ref != "" {
		if l.photos == nil || !l.photos.Exists(ref) {
			return nil, ErrInvalidPhoto
		}
		photoRef = &ref
	}

	entry, err := l.expenses.Create(ctx, db.CreateExpenseParams{
		AccountID:   account.ID,
		Amount:      in.Amount,
		Description: description,
		Category:    category,
		RecordedBy:  actor.ID,
		PhotoRef:    photoRef,
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, EventExpenseRecorded, entry)
	return entry, nil
}

// Amend overwrites amount and description of an existing entry. The entry
// keeps its account and timestamp.
func (l *Ledger) Amend(ctx context.Context, actor *models.Account, entryID string, amount int64, description string) (*models.ExpenseEntry, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	description = l.clean(description)
	if description == "" {
		return nil, ErrInvalidEntry
	}

	entry, err := l.expenses.Amend(ctx, entryID, amount, description, actor.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	l.publish(ctx, EventExpenseAmended, entry)
	return entry, nil
}

func (l *Ledger) Entries(ctx context.Context, accountID string) ([]*models.ExpenseEntry, error) {
	return l.expenses.ListByAccount(ctx, accountID)
}

func (l *Ledger) TotalsByAccount(ctx context.Context) ([]models.AccountTotal, error) {
	return l.expenses.Totals(ctx, 0)
}

// Leaderboard ranks accounts by total spent. Equal totals keep the account
// that spent first ahead.
func (l *Ledger) Leaderboard(ctx context.Context, topN int) ([]LeaderboardEntry, error) {
	if topN <= 0 {
		topN = constants.LeaderboardDefaultSize
	}
	if topN > constants.LeaderboardMaxSize {
		topN = constants.LeaderboardMaxSize
	}

	totals, err := l.expenses.Totals(ctx, topN)
	if err != nil {
		return nil, err
	}

	board := make([]LeaderboardEntry, len(totals))
	for i, t := range totals {
		board[i] = LeaderboardEntry{Rank: i + 1, AccountTotal: t}
	}
	return board, nil
}

// clean strips markup but keeps plain-text characters such as "&" intact.
func (l *Ledger) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(l.sanitizer.Sanitize(s)))
}

func (l *Ledger) publish(ctx context.Context, event string, entry *models.ExpenseEntry) {
	if l.publisher == nil {
		return
	}
	total, err := l.expenses.SumForAccount(ctx, entry.AccountID)
	if err != nil {
		return
	}
	l.publisher.Publish(event, ExpenseEvent{Entry: entry, AccountTotal: total})
}

func requireStaff(actor *models.Account) error {
	if actor == nil || !actor.CanAct() {
		return ErrForbidden
	}
	if actor.Role != models.RoleStaff && actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
