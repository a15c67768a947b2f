package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTaskTimeout bounds a single run of a task.
const DefaultTaskTimeout = 2 * time.Minute

// Task is a recurring job. Run returns the number of items it processed.
type Task struct {
	Type string
	Spec string
	Run  func(ctx context.Context) (int, error)
}

// Scheduler runs tasks on cron schedules. A task still running when its next
// tick fires skips that tick.
type Scheduler struct {
	cron    *cron.Cron
	metrics *Metrics
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a stopped scheduler. metrics may be nil.
func NewScheduler(metrics *Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		metrics: metrics,
		logger:  logger,
		timeout: DefaultTaskTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules t.
func (s *Scheduler) Add(t Task) error {
	if t.Run == nil {
		return errors.New("task has no run function")
	}
	if _, err := s.cron.AddFunc(t.Spec, func() { s.RunTask(s.ctx, t) }); err != nil {
		return fmt.Errorf("schedule %s: %w", t.Type, err)
	}
	s.logger.Info("scheduled job", "job_type", t.Type, "spec", t.Spec)
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running tasks until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunTask runs t once and records its outcome.
func (s *Scheduler) RunTask(ctx context.Context, t Task) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := t.Run(ctx)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveJobDuration(t.Type, elapsed.Seconds())
		s.metrics.AddJobItems(t.Type, n)
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncJobsTotal(t.Type, StatusFailure)
			s.metrics.IncJobErrors(t.Type, errorType(err))
		}
		s.logger.Error("job failed", "job_type", t.Type, "items", n, "duration", elapsed, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncJobsTotal(t.Type, StatusSuccess)
	}
	if n > 0 {
		s.logger.Info("job finished", "job_type", t.Type, "items", n, "duration", elapsed)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
