package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

type CleanupService struct {
	challenges *OTPChallengeRepository
	revoked    *RevokedTokenRepository
	sendWindow time.Duration
	interval   time.Duration
}

func NewCleanupService(
	challenges *OTPChallengeRepository,
	revoked *RevokedTokenRepository,
	sendWindow time.Duration,
) *CleanupService {
	return &CleanupService{
		challenges: challenges,
		revoked:    revoked,
		sendWindow: sendWindow,
		interval:   DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting cleanup service", "component", "cleanup", "interval", s.interval)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *CleanupService) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	challengesDeleted, err := s.challenges.DeleteStale(ctx, now, now.Add(-s.sendWindow))
	if err != nil {
		slog.Error("error deleting stale otp challenges", "component", "cleanup", "error", err)
	} else if challengesDeleted > 0 {
		slog.Info("deleted stale otp challenges", "component", "cleanup", "count", challengesDeleted)
	}

	revokedDeleted, err := s.revoked.DeleteExpired(ctx)
	if err != nil {
		slog.Error("error deleting expired revocations", "component", "cleanup", "error", err)
	} else if revokedDeleted > 0 {
		slog.Info("deleted expired revocations", "component", "cleanup", "count", revokedDeleted)
	}
}
