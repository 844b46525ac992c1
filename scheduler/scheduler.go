// Package scheduler runs the periodic background jobs on a cron scheduler.
//
// Each job runs on its own fixed interval. A tick that is still running
// when the next one is due is skipped, a failing or panicking tick is
// logged and the schedule continues. Stop prevents new ticks and waits for
// in-flight ones to finish.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one tick of a background worker.
type Job func(ctx context.Context) error

// ErrUnknownJob is returned by RunNow for an unregistered name.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithBaseContext sets the context passed to every tick. It is not
// canceled by Stop.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Scheduler) { s.ctx = ctx }
}

// Scheduler owns a set of named interval jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context

	mu   sync.Mutex
	jobs map[string]func()
}

// New creates a stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		ctx:    context.Background(),
		jobs:   make(map[string]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)
	return s
}

// Every registers job to run every interval under name. Intervals below
// one second are rounded up by the cron scheduler.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("scheduler: duplicate job %q", name)
	}

	run := s.wrap(name, job)
	if _, err := s.cron.AddFunc("@every "+interval.String(), run); err != nil {
		return fmt.Errorf("scheduler: add %s: %w", name, err)
	}
	s.jobs[name] = run
	return nil
}

// wrap logs the outcome of a tick and contains panics so RunNow shares the
// scheduled behaviour.
func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled job panicked", "job", name, "panic", r)
			}
		}()
		if err := job(s.ctx); err != nil {
			s.logger.Error("scheduled job failed",
				"job", name,
				"elapsed", time.Since(start),
				"error", err,
			)
			return
		}
		s.logger.Debug("scheduled job completed", "job", name, "elapsed", time.Since(start))
	}
}

// RunNow runs the named job synchronously on the caller's goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	run, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	run()
	return nil
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		out = append(out, n)
	}
	return out
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new ticks and waits for running ones, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
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
