package service

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the expiry sweep on a cron schedule. It is the
// long-lived alternative to invoking `permctl cleanup` from an external
// scheduler: a single worker owning all sweep mutations, so scheduled
// cleanups never race each other.
type Sweeper struct {
	cron     *cron.Cron
	manager  *Manager
	schedule string
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. schedule is a standard cron expression,
// e.g. "*/5 * * * *" to sweep every five minutes.
func NewSweeper(manager *Manager, schedule string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		manager:  manager,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		count, err := s.manager.Cleanup(ctx)
		if err != nil {
			s.logger.Error("scheduled sweep failed", "error", err)
			return
		}
		if count > 0 {
			s.logger.Info("scheduled sweep revoked expired grants", "count", count)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("expiry sweeper started", "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("expiry sweeper stopped")
}
