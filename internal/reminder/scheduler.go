package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Sweeper on a fixed interval.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now as the sweep instant
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a scheduler sweeping every interval. Sweep timestamps
// and cron evaluation use loc.
func NewScheduler(sweeper *Sweeper, interval time.Duration, loc *time.Location, opts ...SchedulerOption) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("reminder interval must be at least 1s, got %s", interval)
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		sweeper:  sweeper,
		interval: interval,
		timeout:  interval,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	spec := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("failed to schedule sweep: %w", err)
	}
	return s, nil
}

// run is one scheduled sweep; a sweep may not outlive its interval.
func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx, s.now()); err != nil {
		s.logger.Error("reminder sweep failed", "error", err)
	}
}

// Start begins sweeping in the background
func (s *Scheduler) Start() {
	s.logger.Info("reminder scheduler started", "interval", s.interval, "lead", s.sweeper.lead)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("reminder scheduler stopped")
}
