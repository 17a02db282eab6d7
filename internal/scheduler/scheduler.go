// Package scheduler runs crawls periodically on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTimeout bounds one scheduled crawl.
const DefaultTimeout = 30 * time.Minute

// ErrInvalidSchedule is returned for a cron expression that does not parse.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a cron schedule. A trigger that fires while
// the previous job is still running is skipped.
type Scheduler struct {
	job     Job
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	entry cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds each job run. Zero or less means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// New creates a scheduler for job.
func New(job Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		job:     job,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// ParseSchedule checks a standard five-field cron expression or a
// descriptor such as "@hourly" or "@every 30m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, spec, err)
	}
	return sched, nil
}

// Start registers the job under spec and starts the scheduler. Jobs run
// with contexts derived from ctx; cancelling ctx cancels a running job but
// does not stop the scheduler, use Stop for that.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	s.entry = s.cron.Schedule(sched, cron.FuncJob(func() {
		if err := s.RunNow(ctx); err != nil {
			s.logger.Error("scheduled crawl failed", "error", err)
		}
	}))
	s.cron.Start()

	s.logger.Info("crawl scheduler started", "schedule", spec, "next", s.Next())
	return nil
}

// Stop stops scheduling and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("crawl scheduler stopped")
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunNow runs the job once in the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("starting scheduled crawl")
	if err := s.job(ctx); err != nil {
		return err
	}
	s.logger.Info("scheduled crawl completed", "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
