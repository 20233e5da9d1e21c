// Package tasks runs supervised background work. Fire-and-forget goroutines
// are replaced by a runner that bounds in-flight tasks, applies a per-task
// timeout, recovers panics, and can be drained on shutdown.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrRunnerClosed is returned by Submit after Shutdown has begun.
var ErrRunnerClosed = errors.New("task runner is shut down")

// ErrRunnerFull is returned by Submit when all capacity slots are taken.
var ErrRunnerFull = errors.New("task runner at capacity")

// Runner executes named background tasks with a concurrency cap and a
// per-task timeout. Task failures and panics are logged, never fatal.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	slots   chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewRunner creates a runner allowing up to capacity concurrent tasks, each
// bounded by timeout. A capacity below 1 is treated as 1.
func NewRunner(logger *slog.Logger, capacity int, timeout time.Duration) *Runner {
	if capacity < 1 {
		capacity = 1
	}
	return &Runner{
		logger:  logger.With("component", "tasks"),
		timeout: timeout,
		slots:   make(chan struct{}, capacity),
	}
}

// Submit schedules fn on its own goroutine. The context passed to fn carries
// the per-task timeout and is detached from the caller, so an HTTP request
// finishing does not cancel the work it scheduled. Returns ErrRunnerFull when
// no slot is free rather than blocking the caller.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	select {
	case r.slots <- struct{}{}:
	default:
		r.mu.Unlock()
		return ErrRunnerFull
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() { <-r.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		if err := r.run(ctx, name, fn); err != nil {
			r.logger.Error("background task failed", "task", name, "duration", time.Since(start), "error", err)
			return
		}
		r.logger.Debug("background task finished", "task", name, "duration", time.Since(start))
	}()

	return nil
}

func (r *Runner) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in task %s: %v\n%s", name, rec, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Shutdown stops accepting new tasks and waits for in-flight tasks to finish
// or the context to expire, whichever comes first.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tasks still running at shutdown deadline: %w", ctx.Err())
	}
}
