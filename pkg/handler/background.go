package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner detaches work from the HTTP request lifecycle. The dispatcher hands
// the post-acknowledgment phase of a turn to a Runner so the decoupling is
// explicit and testable rather than a bare goroutine.
type Runner interface {
	Go(name string, fn func(ctx context.Context))
}

// AsyncRunner runs jobs on their own goroutines with a panic/error boundary.
// Errors inside a job never reach an HTTP caller; they are logged here and
// the job's own best-effort user messaging is all the caller ever sees.
type AsyncRunner struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncRunner creates a runner whose jobs get a fresh context with the
// given timeout (zero means no timeout).
func NewAsyncRunner(logger *slog.Logger, timeout time.Duration) *AsyncRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncRunner{logger: logger, timeout: timeout}
}

func (r *AsyncRunner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background job panicked", "job", name, "panic", rec)
			}
		}()

		ctx := context.Background()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		fn(ctx)
	}()
}

// Drain waits for in-flight jobs to finish, up to the context deadline.
// Used on shutdown so replies in progress are not dropped.
func (r *AsyncRunner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncRunner runs jobs inline. Used in tests and in the Lambda entry point,
// where execution cannot outlive the response.
type SyncRunner struct {
	logger *slog.Logger
}

// NewSyncRunner creates a synchronous runner.
func NewSyncRunner(logger *slog.Logger) *SyncRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncRunner{logger: logger}
}

func (r *SyncRunner) Go(name string, fn func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("background job panicked", "job", name, "panic", rec)
		}
	}()
	fn(context.Background())
}
