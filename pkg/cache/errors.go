package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks transport-level failures of a cached fetch: timeouts,
// refused connections, 5xx responses. Sources wrap it so callers can tell
// a flaky upstream from a bad payload.
var ErrNetwork = errors.New("network error")

// RetryableError marks an error as worth retrying. Only errors carrying
// this wrapper make RetryWithBackoff try again; everything else fails the
// first attempt.
type RetryableError struct{ Err error }

// Retryable wraps err as retryable. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a RetryableError anywhere in its
// chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// retryAttempts bounds RetryWithBackoff. Dataset fetches happen at startup
// or behind a cache, so a short ladder (1s, 2s) is enough.
const retryAttempts = 3

// RetryWithBackoff runs fn until it succeeds, fails non-retryably, or the
// attempt budget is spent. The delay doubles between attempts and the
// context cancels the wait.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := time.Second
	var lastErr error

	for i := 0; i < retryAttempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
