package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"surfpass/internal/models"
)

type OTPChallengeRepository struct {
	q queryer
}

func NewOTPChallengeRepository(db *DB) *OTPChallengeRepository {
	return &OTPChallengeRepository{q: db}
}

// WithTx returns a repository whose statements run inside tx.
func (r *OTPChallengeRepository) WithTx(tx *sql.Tx) *OTPChallengeRepository {
	return &OTPChallengeRepository{q: tx}
}

// Find returns the single challenge row for (phone, purpose), whether or not
// it is still active.
func (r *OTPChallengeRepository) Find(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTPChallenge, error) {
	var c models.OTPChallenge
	var consumedAt sql.NullTime

	err := r.q.QueryRowContext(ctx,
		`SELECT id, phone, purpose, code_hash, created_at, expires_at, attempts_remaining, resend_available_at,
			consumed_at, send_count, send_window_started_at
		 FROM otp_challenges WHERE phone = ? AND purpose = ?`,
		phone, purpose,
	).Scan(&c.ID, &c.Phone, &c.Purpose, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.AttemptsRemaining,
		&c.ResendAvailableAt, &consumedAt, &c.SendCount, &c.SendWindowStartedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying otp challenge: %w", err)
	}

	c.ConsumedAt = nullTimeToPtr(consumedAt)
	return &c, nil
}

// Save replaces the (phone, purpose) row with c, clearing any consumption.
func (r *OTPChallengeRepository) Save(ctx context.Context, c *models.OTPChallenge) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO otp_challenges (id, phone, purpose, code_hash, created_at, expires_at, attempts_remaining,
			resend_available_at, consumed_at, send_count, send_window_started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
		 ON CONFLICT (phone, purpose) DO UPDATE SET
			id = excluded.id,
			code_hash = excluded.code_hash,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			attempts_remaining = excluded.attempts_remaining,
			resend_available_at = excluded.resend_available_at,
			consumed_at = NULL,
			send_count = excluded.send_count,
			send_window_started_at = excluded.send_window_started_at`,
		c.ID, c.Phone, c.Purpose, c.CodeHash, c.CreatedAt.UTC(), c.ExpiresAt.UTC(), c.AttemptsRemaining,
		c.ResendAvailableAt.UTC(), c.SendCount, c.SendWindowStartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving otp challenge: %w", err)
	}
	return nil
}

// ReserveAttempt spends one attempt on a challenge that is unconsumed,
// unexpired and not exhausted, returning the attempts left and the code hash
// the guess must be compared against. It returns ErrNotFound when no attempt
// could be reserved.
func (r *OTPChallengeRepository) ReserveAttempt(ctx context.Context, id string, now time.Time) (int, string, error) {
	var remaining int
	var codeHash string
	err := r.q.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts_remaining = attempts_remaining - 1
		 WHERE id = ? AND consumed_at IS NULL AND attempts_remaining > 0 AND expires_at > ?
		 RETURNING attempts_remaining, code_hash`,
		id, now.UTC(),
	).Scan(&remaining, &codeHash)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("reserving otp attempt: %w", err)
	}
	return remaining, codeHash, nil
}

// ConsumeIfActive marks an unconsumed, unexpired challenge used. It reports
// false when another request consumed it first or it expired meanwhile.
func (r *OTPChallengeRepository) ConsumeIfActive(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL AND expires_at > ?`,
		at.UTC(), id, at.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("consuming otp challenge: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteStale removes challenges that expired before now and whose send
// window started before windowStart, so quota history is kept while it matters.
func (r *OTPChallengeRepository) DeleteStale(ctx context.Context, now, windowStart time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at < ? AND send_window_started_at < ?`,
		now.UTC(), windowStart.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting stale otp challenges: %w", err)
	}
	return result.RowsAffected()
}

// Invalidate consumes the challenge and lifts its resend cooldown. It is used
// when the code never reached the phone.
func (r *OTPChallengeRepository) Invalidate(ctx context.Context, id string, at time.Time) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = ?, resend_available_at = ? WHERE id = ? AND consumed_at IS NULL`,
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("invalidating otp challenge: %w", err)
	}
	return checkRowsAffected(result)
}
