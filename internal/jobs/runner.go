package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
)

// RunnerParams configure the runner.
type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
}

// Runner executes every registered job once per invocation. Timing is owned by
// the external scheduler that starts the binary.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	now      func() time.Time
}

// NewRunner builds a runner. A nil lock runs without coordination.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Runner{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

// RunOnce runs all jobs in registration order. A failing job does not stop the
// ones after it; the failures are combined into the returned error. When the
// lock is held elsewhere the run is skipped and nil is returned.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r.lock != nil {
		locked, err := r.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("lock acquire: %w", err)
		}
		if !locked {
			r.logg.Info(ctx, "another run holds the job lock; skipping")
			return nil
		}
		defer func() {
			if relErr := r.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
				r.logg.Error(ctx, "failed to release job lock", relErr)
			}
		}()
	}

	r.logg.Info(ctx, "scheduled run starting")
	var errs error
	for _, job := range r.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := r.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	r.logg.Info(ctx, "scheduled run complete")
	return errs
}

func (r *Runner) runJob(ctx context.Context, job Job) error {
	jobCtx := r.logg.WithField(ctx, "job", job.Name())
	jobCtx = r.logg.WithField(jobCtx, "event", "jobs.run")
	r.logg.Info(jobCtx, "job start")

	start := r.now()
	err := job.Run(jobCtx)
	duration := r.now().Sub(start)
	r.metrics.ObserveDuration(job.Name(), duration)

	jobCtx = r.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(jobCtx, "job failed", err)
		r.metrics.IncFailure(job.Name())
		return err
	}
	r.logg.Info(jobCtx, "job completed")
	r.metrics.IncSuccess(job.Name())
	return nil
}
