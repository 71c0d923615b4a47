/**
 * @description
 * Cron scheduler setup for the periodic jobs: the valuation tick and the
 * state snapshot. Both run on the scheduler's single dedicated goroutine.
 */
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Jobs is what the scheduler drives on each tick.
type Jobs struct {
	// RunValuation processes every eligible company once.
	RunValuation func(ctx context.Context)
	// Snapshot serializes the full ledger state.
	Snapshot func(ctx context.Context) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *slog.Logger
}

// New creates a scheduler instance. Panics inside jobs are recovered and
// logged so one bad tick cannot kill the schedule.
func New(jobs Jobs, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start(valuationSchedule, snapshotSchedule string) {
	if _, err := s.cron.AddFunc(valuationSchedule, func() {
		s.jobs.RunValuation(context.Background())
	}); err != nil {
		s.logger.Error("failed to schedule valuation job", "error", err)
	} else {
		s.logger.Info("scheduled valuation job", "schedule", valuationSchedule)
	}

	if s.jobs.Snapshot != nil {
		if _, err := s.cron.AddFunc(snapshotSchedule, func() {
			if err := s.jobs.Snapshot(context.Background()); err != nil {
				s.logger.Error("scheduled snapshot failed", "error", err)
			}
		}); err != nil {
			s.logger.Error("failed to schedule snapshot job", "error", err)
		} else {
			s.logger.Info("scheduled snapshot job", "schedule", snapshotSchedule)
		}
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler; the returned context is done once
// in-flight jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
