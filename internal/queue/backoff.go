package queue

import (
	"context"
	"errors"
	"time"

	"github.com/relayq/relayq/internal/clock"
)

// RetryPolicy retries an operation with capped exponential backoff.
// The delay for attempt n is BaseDelay * 2^n, capped at MaxDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy returns the policy used for transport errors:
// three attempts, one second base delay, capped at ten seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
	}
}

// Delay returns the backoff delay before the given zero-based retry
// attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Do runs fn, retrying on ErrUnavailable until the attempts are
// exhausted or the context is cancelled. Other errors are returned
// immediately.
func (p RetryPolicy) Do(ctx context.Context, clk clock.Clock, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrUnavailable) {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
