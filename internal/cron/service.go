package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// Job is one maintenance task. Run reports how many rows it changed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs all jobs once per interval. Jobs of one cycle run concurrently
// and each one only under its own lease.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	locker   Locker
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Locker == nil {
		return nil, errors.New("locker required")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	names := make(map[string]struct{}, len(params.Jobs))
	for _, job := range params.Jobs {
		if job == nil {
			continue
		}
		if _, dup := names[job.Name()]; dup {
			return nil, fmt.Errorf("job %q registered twice", job.Name())
		}
		names[job.Name()] = struct{}{}
		jobs = append(jobs, job)
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		locker:   params.Locker,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() == nil {
			s.runCycle(ctx)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns how many jobs this worker ran.
func (s *Service) runCycle(ctx context.Context) int {
	var (
		wg  sync.WaitGroup
		ran atomic.Int32
	)
	for _, job := range s.jobs {
		wg.Go(func() {
			if s.runLeased(ctx, job) {
				ran.Add(1)
			}
		})
	}
	wg.Wait()
	return int(ran.Load())
}

func (s *Service) runLeased(ctx context.Context, job Job) bool {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})

	lease, ok, err := s.locker.TryLock(ctx, job.Name())
	if err != nil {
		s.logg.Error(jobCtx, "cron lease unavailable", err)
		return false
	}
	if !ok {
		s.logg.Debug(jobCtx, "cron job leased by another worker")
		return false
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(jobCtx, "cron lease release failed", err)
		}
	}()

	start := time.Now()
	affected, err := job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)
	s.metrics.AddAffected(job.Name(), affected)

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms":   elapsed.Milliseconds(),
		"rows_affected": affected,
	})
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
	} else {
		s.logg.Info(jobCtx, "cron job completed")
	}
	return true
}
