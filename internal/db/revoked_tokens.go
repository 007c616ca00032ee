package db

import (
	"context"
	"fmt"
	"time"
)

type RevokedTokenRepository struct {
	db *DB
}

func NewRevokedTokenRepository(db *DB) *RevokedTokenRepository {
	return &RevokedTokenRepository{db: db}
}

// Revoke records jti as unusable until expiresAt. It reports false when the
// token was already revoked.
func (r *RevokedTokenRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at, revoked_at) VALUES (?, ?, ?) ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("revoking token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&count); err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}

func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired revocations: %w", err)
	}
	return result.RowsAffected()
}
