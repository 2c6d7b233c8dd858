package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks backend connection failures.
var ErrNetwork = errors.New("network error")

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }

func (e retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient so a [Backoff] tries again. It returns nil
// for nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err was marked by [Retryable].
func IsRetryable(err error) bool {
	var re retryableError
	return errors.As(err, &re)
}

// retryDelay is the first delay of the default backoff.
var retryDelay = time.Second

// Backoff retries transient backend failures, doubling Delay after every
// attempt.
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

// Do calls fn until it succeeds, returns an error not marked [Retryable], or
// Attempts calls were made. The last error is returned.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return err
}

// RetryWithBackoff runs fn with three attempts starting at a one second delay.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Backoff{Attempts: 3, Delay: retryDelay}.Do(ctx, fn)
}
