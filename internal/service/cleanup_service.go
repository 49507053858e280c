package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const cleanupTimeout = time.Minute

// CleanupService purges expired refresh token records on a cron schedule.
type CleanupService struct {
	tokens   RefreshTokenStore
	observer Observer
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewCleanupService(tokens RefreshTokenStore, schedule string, observer Observer, logger *slog.Logger) (*CleanupService, error) {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CleanupService{
		tokens:   tokens,
		observer: observer,
		logger:   logger,
		cron:     cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.PurgeExpired(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule token cleanup %q: %w", schedule, err)
	}

	return s, nil
}

// PurgeExpired deletes every refresh token record whose expiry has passed.
func (s *CleanupService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	purged, err := s.tokens.CleanExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "expired refresh token cleanup failed", slog.String("error", err.Error()))
		return 0, err
	}

	s.observer.TokensPurged(purged)
	if purged > 0 {
		s.logger.InfoContext(ctx, "expired refresh tokens purged", slog.Int64("count", purged))
	}
	return purged, nil
}

// Run starts the scheduler and blocks until ctx is done. Running jobs are
// allowed to finish.
func (s *CleanupService) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
