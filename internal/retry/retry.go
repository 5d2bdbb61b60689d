// Package retry implements the bounded retry policy used around slow backend calls:
// a fixed number of attempts, a fixed delay between them and a per-attempt deadline.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an attempt does not finish before its deadline.
var ErrTimeout = errors.New("attempt timed out")

// Policy describes how often and how long an operation is retried.
type Policy struct {
	MaxAttempts    int           // total attempts including the first; values < 1 mean 1
	Delay          time.Duration // wait between attempts
	AttemptTimeout time.Duration // deadline for a single attempt; 0 disables it
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, the attempts run out or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := WithTimeout(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err

		if attempt < attempts && p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// WithTimeout races fn against a timer. When the timer wins the attempt context is cancelled
// and whatever fn eventually returns is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
