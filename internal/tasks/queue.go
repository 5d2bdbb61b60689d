// Package tasks runs best-effort side effects (welcome emails, analytics calls) off the caller's path.
// Failures are logged and never reach the caller.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/applytrak/applytrak/internal/logging"
)

// DefaultConcurrency bounds how many tasks run at once.
const DefaultConcurrency = 4

// Func is a unit of best-effort work.
type Func func(ctx context.Context) error

// Queue runs submitted tasks with bounded concurrency.
type Queue struct {
	sem    *semaphore.Weighted
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue creates a queue running at most concurrency tasks at once.
func NewQueue(concurrency int, logger *zap.Logger) *Queue {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logging.OrNop(logger),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules fn with the given timeout (0 means none). It never blocks the caller
// and reports false only when the queue is closed.
func (q *Queue) Submit(name string, timeout time.Duration, fn Func) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("task dropped, queue closed", zap.String("task", name))
		return false
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			q.logger.Warn("task dropped", zap.String("task", name), zap.Error(err))
			return
		}
		defer q.sem.Release(1)

		ctx := q.ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		if err := run(ctx, fn); err != nil {
			q.logger.Warn("best-effort task failed",
				zap.String("task", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		q.logger.Debug("best-effort task done", zap.String("task", name), zap.Duration("elapsed", time.Since(start)))
	}()
	return true
}

// run shields the queue from panics in task code.
func run(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every submitted task has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops accepting tasks, waits up to grace for running ones, then cancels the rest.
func (q *Queue) Close(grace time.Duration) {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		q.cancel()
		<-done
	}
	q.cancel()
}
