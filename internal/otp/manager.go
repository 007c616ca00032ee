package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"surfpass/internal/auth"
	"surfpass/internal/config"
	"surfpass/internal/db"
	"surfpass/internal/models"
	"surfpass/internal/phone"
	"surfpass/internal/sms"
)

type SendResult struct {
	Phone                 string    `json:"phone"`
	ExpiresAt             time.Time `json:"expiresAt"`
	ResendCooldownSeconds int       `json:"resendCooldownSeconds"`
	RemainingAttempts     int       `json:"remainingAttempts"`
}

type Manager struct {
	db         *db.DB
	challenges *db.OTPChallengeRepository
	sender     sms.Sender
	cfg        config.OTPConfig
	serverName string
	production bool
	now        func() time.Time
	newCode    func() (string, error)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.newCode = gen }
}

// WithProduction makes delivery failures fatal to the send.
func WithProduction(production bool) Option {
	return func(m *Manager) { m.production = production }
}

func WithServerName(name string) Option {
	return func(m *Manager) { m.serverName = name }
}

func NewManager(database *db.DB, challenges *db.OTPChallengeRepository, sender sms.Sender, cfg config.OTPConfig, opts ...Option) *Manager {
	m := &Manager{
		db:         database,
		challenges: challenges,
		sender:     sender,
		cfg:        cfg,
		serverName: "Surfpass",
		now:        time.Now,
		newCode:    auth.GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Normalize canonicalizes a phone number using the configured default country.
func (m *Manager) Normalize(raw string) (string, error) {
	return phone.Normalize(raw, m.cfg.DefaultCountryHint)
}

// Send issues a fresh code for (phone, purpose), replacing any previous one.
// The resend cooldown only guards a challenge that can still be verified.
// The cooldown and quota checks run in the same write transaction as the
// replacement, so concurrent sends for one number are serialized.
func (m *Manager) Send(ctx context.Context, rawPhone string, purpose models.OTPPurpose) (*SendResult, error) {
	if !purpose.Valid() {
		return nil, ErrInvalidPurpose
	}
	e164, err := m.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	code, err := m.newCode()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	quota := m.quotaFor(e164)
	var challenge *models.OTPChallenge

	err = m.db.InTx(ctx, func(tx *sql.Tx) error {
		repo := m.challenges.WithTx(tx)

		sendCount := 0
		windowStart := now

		existing, err := repo.Find(ctx, e164, purpose)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		if existing != nil {
			if challengeState(existing, now) == nil && now.Before(existing.ResendAvailableAt) {
				return &ErrResendCooldown{Seconds: ceilSeconds(existing.ResendAvailableAt.Sub(now))}
			}
			if now.Sub(existing.SendWindowStartedAt) < m.cfg.SendWindow {
				sendCount = existing.SendCount
				windowStart = existing.SendWindowStartedAt
			}
		}
		if sendCount >= quota {
			return &ErrSendLimitReached{Seconds: ceilSeconds(windowStart.Add(m.cfg.SendWindow).Sub(now))}
		}

		id, err := db.GenerateID("otp")
		if err != nil {
			return fmt.Errorf("generating challenge ID: %w", err)
		}
		challenge = &models.OTPChallenge{
			ID:                  id,
			Phone:               e164,
			Purpose:             purpose,
			CodeHash:            auth.HashCode(e164, string(purpose), code),
			CreatedAt:           now,
			ExpiresAt:           now.Add(m.cfg.CodeTTL),
			AttemptsRemaining:   m.cfg.MaxAttempts,
			ResendAvailableAt:   now.Add(m.cfg.ResendCooldown),
			SendCount:           sendCount + 1,
			SendWindowStartedAt: windowStart,
		}
		return repo.Save(ctx, challenge)
	})
	if err != nil {
		return nil, err
	}

	if err := m.sender.Send(ctx, e164, sms.OTPMessage(m.serverName, code, m.cfg.CodeTTL)); err != nil {
		if m.production {
			slog.Error("otp delivery failed", "component", "otp", "phone", e164, "purpose", purpose, "error", err)
			if invErr := m.challenges.Invalidate(ctx, challenge.ID, m.now()); invErr != nil {
				slog.Error("failed to invalidate undelivered challenge", "component", "otp", "error", invErr)
			}
			return nil, ErrDelivery
		}
		slog.Warn("otp delivery failed, code still usable",
			"component", "otp", "phone", e164, "purpose", purpose, "code", code, "error", err)
	}

	return &SendResult{
		Phone:                 e164,
		ExpiresAt:             challenge.ExpiresAt,
		ResendCooldownSeconds: ceilSeconds(m.cfg.ResendCooldown),
		RemainingAttempts:     quota - challenge.SendCount,
	}, nil
}

// Verify consumes the active challenge when code matches. Every guess
// reserves one attempt before the comparison, so concurrent guesses never
// exceed the attempt budget.
func (m *Manager) Verify(ctx context.Context, rawPhone string, purpose models.OTPPurpose, code string) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	e164, err := m.Normalize(rawPhone)
	if err != nil {
		return err
	}

	challenge, err := m.challenges.Find(ctx, e164, purpose)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNoActiveChallenge
	}
	if err != nil {
		return err
	}

	now := m.now().UTC()
	if err := challengeState(challenge, now); err != nil {
		return err
	}

	remaining, codeHash, err := m.challenges.ReserveAttempt(ctx, challenge.ID, now)
	if errors.Is(err, db.ErrNotFound) {
		return m.unavailable(ctx, e164, purpose, now)
	}
	if err != nil {
		return err
	}

	if auth.CodeMatches(codeHash, e164, string(purpose), code) {
		consumed, err := m.challenges.ConsumeIfActive(ctx, challenge.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrNoActiveChallenge
		}
		return nil
	}

	if remaining == 0 {
		return ErrAttemptsExhausted
	}
	return &ErrInvalidCode{AttemptsRemaining: remaining}
}

// unavailable explains why no attempt could be reserved, from a fresh read.
func (m *Manager) unavailable(ctx context.Context, e164 string, purpose models.OTPPurpose, now time.Time) error {
	challenge, err := m.challenges.Find(ctx, e164, purpose)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNoActiveChallenge
	}
	if err != nil {
		return err
	}
	if err := challengeState(challenge, now); err != nil {
		return err
	}
	// Replaced by a newer send between the read and the reservation.
	return ErrNoActiveChallenge
}

func challengeState(c *models.OTPChallenge, now time.Time) error {
	switch {
	case c.ConsumedAt != nil:
		return ErrNoActiveChallenge
	case c.AttemptsRemaining <= 0:
		return ErrAttemptsExhausted
	case !now.Before(c.ExpiresAt):
		return ErrExpired
	}
	return nil
}

func (m *Manager) quotaFor(e164 string) int {
	if phone.DetectCountry(e164) == m.cfg.HomeCountry {
		return m.cfg.HomeCountrySends
	}
	return m.cfg.ForeignSends
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
