package checkin

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"surfpass/internal/db"
	"surfpass/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrForbidden       = errors.New("only staff and admins can check people in")
)

const EventCheckedIn = "CHECKED_IN"

// accountIDPattern finds an account id anywhere in a scanned QR payload.
var accountIDPattern = regexp.MustCompile(db.AccountIDPrefix + `\d+`)

// Publisher fans check-ins out to live dashboards. It may be nil.
type Publisher interface {
	Publish(event string, payload any)
}

type Stats struct {
	TotalRSVP      int     `json:"totalRSVP"`
	TotalCheckedIn int     `json:"totalCheckedIn"`
	Rate           float64 `json:"rate"`
}

// ScanResult is the lookup for a scanned badge. Found is false when the
// payload carries no known account; staff then continue manually.
type ScanResult struct {
	Found     bool            `json:"found"`
	AccountID string          `json:"accountId,omitempty"`
	Account   *models.Account `json:"account,omitempty"`
	CheckIn   *models.CheckIn `json:"checkIn,omitempty"`
	Message   string          `json:"message"`
}

type Registry struct {
	checkins  *db.CheckInRepository
	accounts  *db.AccountRepository
	publisher Publisher
	now       func() time.Time
}

func NewRegistry(checkins *db.CheckInRepository, accounts *db.AccountRepository, publisher Publisher) *Registry {
	return &Registry{
		checkins:  checkins,
		accounts:  accounts,
		publisher: publisher,
		now:       time.Now,
	}
}

// ExtractAccountID returns the first account id embedded in payload.
func ExtractAccountID(payload string) (string, bool) {
	id := accountIDPattern.FindString(strings.ToUpper(payload))
	return id, id != ""
}

// CheckIn records the account's arrival once. Repeated calls return the
// first record with created set to false.
func (r *Registry) CheckIn(ctx context.Context, actor *models.Account, accountID string) (*models.CheckIn, bool, error) {
	if err := requireStaff(actor); err != nil {
		return nil, false, err
	}

	account, err := r.accounts.FindByID(ctx, strings.TrimSpace(accountID))
	if errors.Is(err, db.ErrNotFound) {
		return nil, false, ErrAccountNotFound
	}
	if err != nil {
		return nil, false, err
	}

	record, created, err := r.checkins.Upsert(ctx, account.ID, actor.ID, r.now())
	if err != nil {
		return nil, false, err
	}

	if created {
		slog.Info("account checked in", "component", "checkin", "account_id", account.ID, "staff_id", actor.ID)
		if r.publisher != nil {
			r.publisher.Publish(EventCheckedIn, record)
		}
	}
	return record, created, nil
}

// Scan resolves a QR payload to an account and its check-in, if any.
func (r *Registry) Scan(ctx context.Context, actor *models.Account, payload string) (*ScanResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	id, ok := ExtractAccountID(payload)
	if !ok {
		return &ScanResult{Found: false, Message: "No account id in this code. Proceed manually."}, nil
	}

	account, err := r.accounts.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return &ScanResult{Found: false, AccountID: id, Message: "Account not found. Proceed manually."}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Found: true, AccountID: account.ID, Account: account, Message: "Account found."}
	existing, err := r.checkins.FindByAccount(ctx, account.ID)
	switch {
	case err == nil:
		result.CheckIn = existing
		result.Message = "Already checked in."
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}
	return result, nil
}

// Stats counts approved active attendees as RSVPs.
func (r *Registry) Stats(ctx context.Context) (*Stats, error) {
	rsvp, err := r.accounts.CountActive(ctx, models.RoleUser)
	if err != nil {
		return nil, err
	}
	checkedIn, err := r.checkins.CountActiveUsers(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalRSVP: rsvp, TotalCheckedIn: checkedIn}
	if rsvp > 0 {
		stats.Rate = decimal.NewFromInt(int64(checkedIn)).DivRound(decimal.NewFromInt(int64(rsvp)), 4).InexactFloat64()
	}
	return stats, nil
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
