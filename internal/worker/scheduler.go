// Package worker runs the periodic background jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	logpkg "trackify/internal/log"
)

// Job is one unit of periodic work. now is the tick that triggered it.
type Job func(ctx context.Context, now time.Time) error

// Scheduler runs a job at startup and then on every interval until its
// context is cancelled. Runs never overlap: a tick that arrives while the
// job is still running is dropped by the ticker.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(name string, interval time.Duration, job Job, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if job == nil {
		return nil, errors.New("scheduler needs a job")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With(slog.String(logpkg.FieldComponent, logpkg.ComponentWorker), "job", name),
		now:      time.Now,
	}, nil
}

// Run blocks until ctx is done. Job failures are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduler stopped")
			return nil
		case now := <-ticker.C:
			s.runOnce(ctx, now)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := s.job(ctx, now)
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "Job finished",
			logpkg.FieldDuration, elapsed,
			"next_run", now.Add(s.interval).Format(time.DateTime))
	case errors.Is(err, context.Canceled):
		s.logger.InfoContext(ctx, "Job interrupted by shutdown")
	default:
		s.logger.ErrorContext(ctx, "Job failed",
			logpkg.FieldError, err,
			logpkg.FieldDuration, elapsed)
	}
}
