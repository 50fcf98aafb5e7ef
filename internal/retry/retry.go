package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

// Callable is invoked once per attempt, starting with attempt 1.
// Returning an error built with Error asks for another attempt,
// any other error stops the loop immediately.
type Callable func(attempt int) error

type retryError struct {
	error
	attempt int
}

func (e *retryError) Unwrap() error {
	return e.error
}

func Error(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &retryError{error: err, attempt: attempt}
}

type Attempts interface {
	Next() (time.Duration, bool)
	Current() int
}

func Start(ctx context.Context, a Attempts, cb Callable) error {
	var lastErr error

	for {
		err := cb(a.Current())
		if err == nil {
			return nil
		}

		var rErr *retryError
		if !errors.As(err, &rErr) {
			return errors.Wrapf(err, "attempt %d failed", a.Current())
		}

		lastErr = rErr.error

		next, stop := a.Next()
		if stop {
			return errors.Wrap(ErrTooManyAttempts, lastErr.Error())
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), lastErr.Error())
		case <-time.After(next):
		}
	}
}

func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Start(ctx, IncrementalAttempts(step, maxAttempts), cb)
}

type incrementalAttempts struct {
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

func (a *incrementalAttempts) Next() (time.Duration, bool) {
	a.curr++
	if a.curr > a.max {
		return 0, true
	}

	next := a.prev + a.step
	a.prev = next

	return next, false
}

func (a *incrementalAttempts) Current() int {
	return a.curr
}

// IncrementalAttempts waits one more step after every failed attempt.
func IncrementalAttempts(step time.Duration, max int) Attempts {
	return &incrementalAttempts{
		step: step,
		max:  max,
		curr: 1,
	}
}
