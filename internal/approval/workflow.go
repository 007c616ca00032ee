package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"surfpass/internal/auth"
	"surfpass/internal/db"
	"surfpass/internal/models"
)

var (
	ErrForbidden         = errors.New("super admin privileges required")
	ErrNotFound          = errors.New("account not found")
	ErrInvalidTransition = errors.New("account is not awaiting a decision")
	ErrInvalidAction     = errors.New("action must be approve or deny")
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

// Notifier tells an applicant about a decision. It may be nil.
type Notifier interface {
	SendDecisionNotice(ctx context.Context, to, fullName, role string, approved bool) error
}

type Workflow struct {
	accounts *db.AccountRepository
	notifier Notifier
}

func NewWorkflow(accounts *db.AccountRepository, notifier Notifier) *Workflow {
	return &Workflow{accounts: accounts, notifier: notifier}
}

// Authenticate resolves verified session claims to the account they name.
// The account must still exist, hold the token's role, and be approved and
// active; anything else is ErrUnauthenticated.
func (w *Workflow) Authenticate(ctx context.Context, claims *auth.Claims) (*models.Account, error) {
	account, err := w.accounts.FindByID(ctx, claims.AccountID())
	if errors.Is(err, db.ErrNotFound) {
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if account.Role != claims.Role {
		return nil, auth.ErrUnauthenticated
	}
	if err := Authorize(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authorize gates role-scoped endpoints.
func Authorize(account *models.Account) error {
	if account == nil || !account.CanAct() {
		return auth.ErrUnauthenticated
	}
	return nil
}

func (w *Workflow) requireSuperAdmin(actor *models.Account) error {
	if err := Authorize(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin || !actor.IsSuperAdmin {
		return ErrForbidden
	}
	return nil
}

// Decide moves a PENDING STAFF or ADMIN account to APPROVED or DENIED.
// Both outcomes are terminal.
func (w *Workflow) Decide(ctx context.Context, actor *models.Account, targetID string, action Action) (*models.Account, error) {
	if err := w.requireSuperAdmin(actor); err != nil {
		return nil, err
	}

	var status models.RegistrationStatus
	switch action {
	case ActionApprove:
		status = models.StatusApproved
	case ActionDeny:
		status = models.StatusDenied
	default:
		return nil, ErrInvalidAction
	}

	target, err := w.find(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == models.RoleUser {
		return nil, ErrInvalidTransition
	}

	if err := w.accounts.Decide(ctx, target.ID, status, actor.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	decided, err := w.accounts.FindByID(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading decided account: %w", err)
	}

	slog.Info("registration decided", "component", "approval",
		"account_id", decided.ID, "role", decided.Role, "status", status, "actor_id", actor.ID)

	w.notify(ctx, decided)
	return decided, nil
}

// SetActive toggles whether an account may use role-scoped endpoints.
// A super admin cannot deactivate their own account.
func (w *Workflow) SetActive(ctx context.Context, actor *models.Account, targetID string, active bool) (*models.Account, error) {
	if err := w.requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	if targetID == actor.ID && !active {
		return nil, ErrInvalidTransition
	}

	if err := w.accounts.SetActive(ctx, targetID, active); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	slog.Info("account activation changed", "component", "approval",
		"account_id", targetID, "active", active, "actor_id", actor.ID)

	return w.find(ctx, targetID)
}

// ListPending returns pending applicants for role, or for both STAFF and
// ADMIN when role is empty.
func (w *Workflow) ListPending(ctx context.Context, actor *models.Account, role models.Role) ([]*models.Account, error) {
	if err := w.requireSuperAdmin(actor); err != nil {
		return nil, err
	}

	roles := []models.Role{models.RoleStaff, models.RoleAdmin}
	if role != "" {
		roles = []models.Role{role}
	}

	pending := make([]*models.Account, 0)
	for _, r := range roles {
		accounts, err := w.accounts.ListByStatus(ctx, r, models.StatusPending)
		if err != nil {
			return nil, err
		}
		pending = append(pending, accounts...)
	}
	return pending, nil
}

func (w *Workflow) find(ctx context.Context, id string) (*models.Account, error) {
	account, err := w.accounts.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	return account, err
}

func (w *Workflow) notify(ctx context.Context, account *models.Account) {
	if w.notifier == nil || account.Email == nil {
		return
	}
	approved := account.RegistrationStatus == models.StatusApproved
	if err := w.notifier.SendDecisionNotice(ctx, *account.Email, account.FullName, string(account.Role), approved); err != nil {
		slog.Warn("failed to send decision notice", "component", "approval", "account_id", account.ID, "error", err)
	}
}
