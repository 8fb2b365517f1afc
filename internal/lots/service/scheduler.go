package service

import (
	"context"
	"time"

	"github.com/farmaflow/farmaflow-backend/pkg/logger"
)

// RefreshScheduler periodically recomputes the expiry summary and announces
// lots that turned critical or expired.
type RefreshScheduler struct {
	service  *LotService
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRefreshScheduler creates a new refresh scheduler
func NewRefreshScheduler(svc *LotService, interval time.Duration, log *logger.Logger) *RefreshScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshScheduler{
		service:  svc,
		interval: interval,
		logger:   log.WithComponent("refresh_scheduler"),
	}
}

// Start runs one refresh immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *RefreshScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("refresh scheduler started")

		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("refresh scheduler stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for the running cycle to finish
func (s *RefreshScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunOnce performs a single refresh cycle
func (s *RefreshScheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	summary, err := s.service.Refresh(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry refresh failed")
		return
	}

	announced := s.service.AnnounceAlerts(ctx, summary)

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("expired", len(summary.Expired)).
		Int("critical", len(summary.Critical)).
		Int("upcoming", len(summary.Upcoming)).
		Int("announced", announced).
		Msg("expiry refresh completed")
}
