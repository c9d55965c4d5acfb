// Package worker runs independent evaluation jobs with bounded concurrency.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/faceval/pkg/logger"
	"github.com/okian/faceval/pkg/metrics"
)

// Job is one unit of work, typically the evaluation of a single model.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is the outcome of a Job.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Pool runs jobs with at most size of them in flight. A failing job never
// cancels its siblings.
type Pool struct {
	size   int
	name   string
	logger logger.Logger
}

// NewPool creates a pool. A size below 1 defaults to runtime.NumCPU().
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size: size,
		name: "worker-pool",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named(p.name)
	}
	return p
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Run executes every job and returns their results in job order. Jobs not yet
// started when ctx is cancelled report ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.size)
	for i, job := range jobs {
		results[i].Name = job.Name
		g.Go(func() error {
			results[i] = p.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pool) runJob(ctx context.Context, job Job) (res Result) {
	res.Name = job.Name
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	metrics.AddActiveWorkers(1)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
		res.Duration = time.Since(start)
		metrics.AddActiveWorkers(-1)

		status := metrics.StatusOK
		if res.Err != nil {
			status = metrics.StatusFailed
			metrics.RecordError("worker", "job_failed")
			p.logger.Error(ctx, "job failed",
				logger.String("job", job.Name),
				logger.Duration("duration", res.Duration),
				logger.Error(res.Err))
		} else {
			p.logger.Debug(ctx, "job finished",
				logger.String("job", job.Name),
				logger.Duration("duration", res.Duration))
		}
		metrics.RecordRun(job.Name, status, res.Duration)
	}()

	res.Err = job.Run(ctx)
	return res
}
