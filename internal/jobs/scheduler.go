/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron           *cron.Cron
	jobs           *Jobs
	logger         *slog.Logger
	digestSchedule string
}

// NewScheduler creates a new scheduler instance. Schedules are evaluated in loc.
func NewScheduler(jobs *Jobs, logger *slog.Logger, loc *time.Location, digestSchedule string) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:           c,
		jobs:           jobs,
		logger:         logger,
		digestSchedule: digestSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler. An empty schedule
// disables its job.
func (s *Scheduler) Start() error {
	if s.digestSchedule == "" {
		s.logger.Info("metrics digest job disabled")
	} else if _, err := s.cron.AddFunc(s.digestSchedule, s.jobs.PublishDailyDigest); err != nil {
		s.logger.Error("failed to schedule metrics digest job", "error", err)
		return err
	} else {
		s.logger.Info("scheduled metrics digest job", "schedule", s.digestSchedule)
	}

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
