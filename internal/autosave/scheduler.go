// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package autosave runs a periodic save of every enabled component.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
)

// DefaultInterval is the save period used when none is configured.
const DefaultInterval = 2 * time.Minute

// Saver saves every enabled component.
type Saver interface {
	SaveAll(ctx context.Context)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the save period. cron schedules at second granularity,
// so intervals below one second run every second.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler triggers Saver.SaveAll at a fixed interval.
type Scheduler struct {
	saver    Saver
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a scheduler for saver.
func New(saver Saver, opts ...Option) *Scheduler {
	s := &Scheduler{
		saver:    saver,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured save period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins periodic saving. ctx is passed to every save; cancelling it
// does not stop the schedule, Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return oops.Code("AUTOSAVE_RUNNING").Errorf("autosave already started")
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.RunNow(ctx)
	}))
	c.Start()
	s.cron = c

	s.logger.Info("autosave started", "interval", s.interval.String())
	return nil
}

// Stop halts the schedule and waits for a running save to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		s.logger.Info("autosave stopped")
		return nil
	case <-ctx.Done():
		return oops.Code("AUTOSAVE_STOP_TIMEOUT").Wrapf(ctx.Err(), "waiting for running save")
	}
}

// RunNow saves every enabled component immediately.
func (s *Scheduler) RunNow(ctx context.Context) {
	start := time.Now()
	s.saver.SaveAll(ctx)
	elapsed := time.Since(start)
	Runs.Inc()
	RunDuration.Observe(elapsed.Seconds())
	s.logger.Debug("autosave complete", "duration_ms", elapsed.Milliseconds())
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
