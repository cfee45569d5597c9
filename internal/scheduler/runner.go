package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
)

const defaultJobTimeout = 2 * time.Minute

// Job is a unit of periodic work.
type Job func(ctx context.Context) error

// Runner owns the cron instance and the registered jobs.
type Runner struct {
	mu   sync.Mutex
	log  *slog.Logger
	loc  *time.Location
	c    *cron.Cron
	jobs map[TaskType]Job
	ctx  context.Context
}

// NewRunner creates a Runner in the configured timezone. An invalid
// timezone falls back to UTC.
func NewRunner(cfg config.SchedulerConfig, log *slog.Logger) *Runner {
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid timezone, falling back to UTC", "tz", tz, "error", err)
		} else {
			loc = l
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Runner{
		log: log,
		loc: loc,
		c: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobs: map[TaskType]Job{},
		ctx:  context.Background(),
	}
}

// Register schedules job under spec. Overlapping runs of the same job are
// skipped.
func (r *Runner) Register(task TaskType, spec string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fire := func() {
		r.mu.Lock()
		ctx := r.ctx
		r.mu.Unlock()
		_ = r.run(ctx, task, job)
	}
	if _, err := r.c.AddFunc(spec, fire); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", task, spec, err)
	}
	r.jobs[task] = job
	r.log.Info("job registered", "task", string(task), "spec", spec)
	return nil
}

// RunTask executes a registered job once, outside the schedule.
func (r *Runner) RunTask(ctx context.Context, task TaskType) error {
	r.mu.Lock()
	job, ok := r.jobs[task]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s is not registered", task)
	}
	return r.run(ctx, task, job)
}

func (r *Runner) run(ctx context.Context, task TaskType, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, defaultJobTimeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	if err != nil {
		r.log.Error("job failed", "task", string(task), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return err
	}
	r.log.Info("job finished", "task", string(task), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Start begins firing jobs. Jobs inherit ctx.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	r.c.Start()
	r.log.Info("scheduler started", "tz", r.loc.String())
}

// Stop halts the schedule and waits for running jobs or ctx, whichever
// finishes first.
func (r *Runner) Stop(ctx context.Context) {
	select {
	case <-r.c.Stop().Done():
	case <-ctx.Done():
	}
	r.log.Info("scheduler stopped")
}
