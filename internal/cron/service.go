package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/posync/pkg/logger"
	"github.com/angelmondragon/posync/pkg/metrics"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval    = 15 * time.Minute
	defaultParallelism = 4
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger      *logger.Logger
	Registry    *Registry
	Locks       LockProvider
	Metrics     *metrics.CronJobMetrics
	Interval    time.Duration
	Parallelism int
}

// Service executes registered jobs on a fixed cadence. Each job runs under its own lock, so
// one tenant's sync never blocks or fails another's.
type Service struct {
	logg        *logger.Logger
	registry    *Registry
	locks       LockProvider
	metrics     *metrics.CronJobMetrics
	interval    time.Duration
	parallelism int
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock provider required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	parallelism := params.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Service{
		logg:        params.Logger,
		registry:    registry,
		locks:       params.Locks,
		metrics:     params.Metrics,
		interval:    interval,
		parallelism: parallelism,
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce runs every registered job once, at most Parallelism at a time, and returns the
// failures of all jobs combined.
func (s *Service) RunOnce(ctx context.Context) error {
	jobs := s.registry.Jobs()
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(jobs)), "scheduled run starting")

	var (
		mu     sync.Mutex
		failed error
		group  errgroup.Group
	)
	group.SetLimit(s.parallelism)
	for _, job := range jobs {
		job := job
		group.Go(func() error {
			if err := s.runLocked(ctx, job); err != nil {
				mu.Lock()
				failed = multierr.Append(failed, fmt.Errorf("%s: %w", job.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	s.logg.Info(s.logg.WithField(ctx, "failed_jobs", len(multierr.Errors(failed))), "scheduled run complete")
	return failed
}

func (s *Service) runLocked(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"scope": ScopeOf(job),
		"event": "cron.job",
	})
	lock, err := s.locks(job)
	if err != nil {
		s.recordFailure(job.Name())
		return fmt.Errorf("build lock: %w", err)
	}
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.recordFailure(job.Name())
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(jobCtx, "another instance is running this job; skipping")
		s.metrics.IncSkipped(job.Name())
		return nil
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(jobCtx)); relErr != nil {
			s.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()
	return s.runJob(jobCtx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	s.logg.Info(ctx, "job start")
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	ctx = s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.recordFailure(job.Name())
		return err
	}
	s.logg.Info(ctx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}

func (s *Service) recordFailure(job string) {
	s.metrics.IncFailure(job)
}
