package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"surfpass/internal/models"
)

const accountColumns = `id, role, phone, phone_verified, email, instagram_handle, full_name, referred_by,
	registration_status, is_active, is_super_admin, created_at, updated_at, decided_at, decided_by`

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type CreateAccountParams struct {
	ID              string
	Role            models.Role
	Phone           *string
	PhoneVerified   bool
	Email           *string
	InstagramHandle string
	FullName        string
	ReferredBy      *string
	Status          models.RegistrationStatus
	IsSuperAdmin    bool
}

// Create inserts the account. Unique index violations come back as
// *UniqueViolation naming the conflicting column.
func (r *AccountRepository) Create(ctx context.Context, p CreateAccountParams) (*models.Account, error) {
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, role, phone, phone_verified, email, instagram_handle, full_name, referred_by,
			registration_status, is_active, is_super_admin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.ID, p.Role, ptrToNullString(p.Phone), p.PhoneVerified, ptrToNullString(p.Email), p.InstagramHandle,
		p.FullName, ptrToNullString(p.ReferredBy), p.Status, p.IsSuperAdmin, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, asUniqueViolation(err)
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return &models.Account{
		ID:                 p.ID,
		Role:               p.Role,
		Phone:              p.Phone,
		PhoneVerified:      p.PhoneVerified,
		Email:              p.Email,
		InstagramHandle:    p.InstagramHandle,
		FullName:           p.FullName,
		ReferredBy:         p.ReferredBy,
		RegistrationStatus: p.Status,
		IsActive:           true,
		IsSuperAdmin:       p.IsSuperAdmin,
		CreatedAt:          now,
	}, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (r *AccountRepository) FindByPhone(ctx context.Context, role models.Role, phone string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role = ? AND phone = ?`, role, phone)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, role models.Role, email string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role = ? AND email = ?`, role, email)
}

// FindConflict returns the column name of the first profile field already
// taken within role, or "" when none is. Empty values are skipped.
func (r *AccountRepository) FindConflict(ctx context.Context, role models.Role, phone, email, instagram string) (string, error) {
	checks := []struct {
		column string
		value  string
	}{
		{"phone", phone},
		{"email", email},
		{"instagram_handle", instagram},
	}

	for _, c := range checks {
		if c.value == "" {
			continue
		}
		var count int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE role = ? AND `+c.column+` = ?`, role, c.value,
		).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("checking %s availability: %w", c.column, err)
		}
		if count > 0 {
			return c.column, nil
		}
	}
	return "", nil
}

// Decide moves a PENDING account to status. It returns ErrNotFound when the
// account does not exist or is no longer pending.
func (r *AccountRepository) Decide(ctx context.Context, id string, status models.RegistrationStatus, actorID string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET registration_status = ?, decided_at = ?, decided_by = ?, updated_at = ?
		 WHERE id = ? AND registration_status = ?`,
		status, now, actorID, now, id, models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("deciding registration: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating account activation: %w", err)
	}
	return checkRowsAffected(result)
}

// SetVerifiedPhone stores a phone proven by OTP. A phone already owned by
// another account of the same role yields *UniqueViolation.
func (r *AccountRepository) SetVerifiedPhone(ctx context.Context, id, phone string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET phone = ?, phone_verified = 1, updated_at = ? WHERE id = ?`,
		phone, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return asUniqueViolation(err)
		}
		return fmt.Errorf("updating phone: %w", err)
	}
	return checkRowsAffected(result)
}

// SetReferrer records the referral edge only if the account has none yet and
// the account does not already appear above referrerID. The cycle check and
// the write are one statement.
func (r *AccountRepository) SetReferrer(ctx context.Context, id, referrerID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET referred_by = ?, updated_at = ?
		 WHERE id = ? AND referred_by IS NULL AND id <> ?
		 AND NOT EXISTS (
			WITH RECURSIVE chain(id, referred_by) AS (
				SELECT id, referred_by FROM accounts WHERE id = ?
				UNION
				SELECT a.id, a.referred_by FROM accounts a JOIN chain c ON a.id = c.referred_by
			)
			SELECT 1 FROM chain WHERE referred_by = ?
		 )`,
		referrerID, time.Now().UTC(), id, referrerID, referrerID, id,
	)
	if err != nil {
		return fmt.Errorf("setting referrer: %w", err)
	}
	return checkRowsAffected(result)
}

// IsAncestor reports whether candidate appears on the referral chain above id
// (id's referrer, its referrer, and so on).
func (r *AccountRepository) IsAncestor(ctx context.Context, candidate, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`WITH RECURSIVE chain(id, referred_by) AS (
			SELECT id, referred_by FROM accounts WHERE id = ?
			UNION
			SELECT a.id, a.referred_by FROM accounts a JOIN chain c ON a.id = c.referred_by
		)
		SELECT COUNT(*) FROM chain WHERE referred_by = ?`,
		id, candidate,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("walking referral chain: %w", err)
	}
	return count > 0, nil
}

func (r *AccountRepository) ListByStatus(ctx context.Context, role models.Role, status models.RegistrationStatus) ([]*models.Account, error) {
	return r.findMany(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = ? AND registration_status = ? ORDER BY created_at, id`,
		role, status,
	)
}

func (r *AccountRepository) ListReferees(ctx context.Context, referrerID string) ([]*models.Account, error) {
	return r.findMany(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE referred_by = ? ORDER BY created_at, id`,
		referrerID,
	)
}

func (r *AccountRepository) CountActive(ctx context.Context, role models.Role) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE role = ? AND is_active = 1 AND registration_status = ?`,
		role, models.StatusApproved,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var phone, email, referredBy, decidedBy sql.NullString
	var updatedAt, decidedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.Role,
		&phone,
		&a.PhoneVerified,
		&email,
		&a.InstagramHandle,
		&a.FullName,
		&referredBy,
		&a.RegistrationStatus,
		&a.IsActive,
		&a.IsSuperAdmin,
		&a.CreatedAt,
		&updatedAt,
		&decidedAt,
		&decidedBy,
	)
	if err != nil {
		return nil, err
	}

	a.Phone = nullStringToPtr(phone)
	a.Email = nullStringToPtr(email)
	a.ReferredBy = nullStringToPtr(referredBy)
	a.DecidedBy = nullStringToPtr(decidedBy)
	a.UpdatedAt = nullTimeToPtr(updatedAt)
	a.DecidedAt = nullTimeToPtr(decidedAt)
	a.CreatedAt = a.CreatedAt.UTC()

	return &a, nil
}

func (r *AccountRepository) findOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) findMany(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}
