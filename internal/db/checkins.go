package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"surfpass/internal/models"
)

type CheckInRepository struct {
	db *DB
}

func NewCheckInRepository(db *DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// Upsert inserts a check-in unless one exists for the account, then returns
// the stored row. created is false when an earlier scan already recorded it.
func (r *CheckInRepository) Upsert(ctx context.Context, accountID, staffID string, at time.Time) (*models.CheckIn, bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO checkins (account_id, checked_in_at, checked_in_by) VALUES (?, ?, ?)
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, at.UTC(), staffID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting check-in: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking rows affected: %w", err)
	}

	c, err := r.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	return c, rows > 0, nil
}

func (r *CheckInRepository) FindByAccount(ctx context.Context, accountID string) (*models.CheckIn, error) {
	var c models.CheckIn
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id, checked_in_at, checked_in_by FROM checkins WHERE account_id = ?`, accountID,
	).Scan(&c.AccountID, &c.CheckedInAt, &c.CheckedInBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying check-in: %w", err)
	}
	c.CheckedInAt = c.CheckedInAt.UTC()
	return &c, nil
}

// CountActiveUsers counts check-ins of USER accounts that are still active
// and approved, the same population CountActive reports as RSVPs.
func (r *CheckInRepository) CountActiveUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkins c JOIN accounts a ON a.id = c.account_id
		 WHERE a.role = ? AND a.is_active = 1 AND a.registration_status = ?`,
		models.RoleUser, models.StatusApproved,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting check-ins: %w", err)
	}
	return count, nil
}
