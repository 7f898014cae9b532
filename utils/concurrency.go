package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs on a bounded number of goroutines. The first job
// error cancels the pool context and is returned from Wait.
type WorkerPool struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewWorkerPool creates a WorkerPool with at most maxWorkers concurrent jobs.
// maxWorkers < 1 is treated as 1.
func NewWorkerPool(ctx context.Context, maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	return &WorkerPool{group: g, ctx: gctx}
}

// Submit enqueues a job, blocking while the pool is full.
func (wp *WorkerPool) Submit(job func(ctx context.Context) error) {
	wp.group.Go(func() error {
		if err := wp.ctx.Err(); err != nil {
			return err
		}
		return job(wp.ctx)
	})
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() error {
	return wp.group.Wait()
}
