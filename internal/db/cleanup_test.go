package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"surfpass/internal/models"
)

func TestCleanupRunOnceDeletesStaleRows(t *testing.T) {
	database := openTestDB(t)
	challenges := NewOTPChallengeRepository(database)
	revoked := NewRevokedTokenRepository(database)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &models.OTPChallenge{
		ID: "otp_stale", Phone: "+628123456789", Purpose: models.PurposeLogin, CodeHash: "h",
		CreatedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-2 * time.Hour), AttemptsRemaining: 5,
		ResendAvailableAt: now.Add(-3 * time.Hour), SendCount: 1, SendWindowStartedAt: now.Add(-3 * time.Hour),
	}
	fresh := &models.OTPChallenge{
		ID: "otp_fresh", Phone: "+628129999999", Purpose: models.PurposeLogin, CodeHash: "h",
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute), AttemptsRemaining: 5,
		ResendAvailableAt: now.Add(time.Minute), SendCount: 1, SendWindowStartedAt: now,
	}
	for _, c := range []*models.OTPChallenge{stale, fresh} {
		if err := challenges.Save(ctx, c); err != nil {
			t.Fatalf("Save(%s) error = %v", c.ID, err)
		}
	}

	if _, err := revoked.Revoke(ctx, "jti-expired", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := revoked.Revoke(ctx, "jti-live", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	NewCleanupService(challenges, revoked, time.Hour).RunOnce(ctx)

	if _, err := challenges.Find(ctx, stale.Phone, stale.Purpose); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(stale) error = %v, want ErrNotFound", err)
	}
	if _, err := challenges.Find(ctx, fresh.Phone, fresh.Purpose); err != nil {
		t.Fatalf("Find(fresh) error = %v", err)
	}

	if gone, _ := revoked.IsRevoked(ctx, "jti-expired"); gone {
		t.Fatal("expired revocation was kept")
	}
	if live, _ := revoked.IsRevoked(ctx, "jti-live"); !live {
		t.Fatal("live revocation was deleted")
	}
}
