package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	applogger "TickChart/pkg/logger"
)

// Scheduler runs recurring jobs on a cron runner.
type Scheduler struct {
	Cron *cron.Cron
	l    *applogger.Logger

	mu      sync.Mutex
	started bool
}

// NewScheduler creates a Scheduler. Jobs that panic are recovered and a run is
// skipped while the previous run of the same job is still going.
func NewScheduler(l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.NewNop()
	}
	cl := cronLogger{l: l}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		l: l,
	}
}

// Every schedules job at a fixed period. Periods are rounded to whole seconds
// with a minimum of one second.
func (s *Scheduler) Every(period time.Duration, job func()) (func(), error) {
	if period <= 0 {
		return nil, fmt.Errorf("schedule: period must be positive, got %s", period)
	}
	if job == nil {
		return nil, errors.New("schedule: nil job")
	}
	id := s.Cron.Schedule(cron.Every(period), cron.FuncJob(job))

	var once sync.Once
	return func() {
		once.Do(func() { s.Cron.Remove(id) })
	}, nil
}

// Start starts the cron runner. It is a no-op when already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.Cron.Start()
	s.started = true
	s.l.Info("Scheduler started")
}

// Stop stops the runner and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.Cron.Stop().Done()
	select {
	case <-done:
		s.l.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvFields(keysAndValues), applogger.Error(err))
	c.l.Error("cron: "+msg, fields...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, applogger.Any(key, kv[i+1]))
	}
	return fields
}
