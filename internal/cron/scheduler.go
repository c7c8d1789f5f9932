package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"simstore/internal/checkout"
	"simstore/internal/handler"
)

// Scheduler runs the background maintenance jobs. Its main duty is the
// defensive bound on abandoned checkouts: no gateway protocol guarantees a
// completion or cancellation signal, so attempts that sit in processing
// past the TTL are cancelled here.
type Scheduler struct {
	cron       *cron.Cron
	flow       *checkout.Flow
	sessions   *handler.CheckoutHandler
	attemptTTL time.Duration
	logger     *zap.Logger
}

// New creates the scheduler.
func New(flow *checkout.Flow, sessions *handler.CheckoutHandler, attemptTTL time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		flow:       flow,
		sessions:   sessions,
		attemptTTL: attemptTTL,
		logger:     logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Expire abandoned checkout attempts - every minute
	s.cron.AddFunc("0 * * * * *", func() {
		s.logger.Debug("Running: expire stale attempts")
		if n := s.flow.ExpireStale(s.attemptTTL); n > 0 {
			s.logger.Info("Expired stale checkout attempts", zap.Int("count", n))
		}
	})

	// Prune dead web sessions - every 10 minutes
	s.cron.AddFunc("0 */10 * * * *", func() {
		s.logger.Debug("Running: prune web sessions")
		s.sessions.PruneSessions(2 * s.attemptTTL)
	})

	s.cron.Start()
}

// Stop stops the scheduler and returns a context that is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
