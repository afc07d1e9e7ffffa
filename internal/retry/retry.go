// Package retry implements the engine's narrow optimistic-lock retry
// policy: up to K bounded attempts with exponential backoff, built on the
// standard library alone.
package retry

import (
	"context"
	"time"
)

// Policy bounds the number of attempts and the backoff schedule.
type Policy struct {
	MaxAttempts int           // bounded attempt count (default 3)
	BaseDelay   time.Duration // delay before the first retry
}

// DefaultPolicy retries up to 3 times with a conservative base delay.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}

// Do calls fn up to p.MaxAttempts times, stopping as soon as fn returns a
// nil error or a non-retryable error (retryable decides). Between
// attempts it sleeps BaseDelay*2^attempt, honoring ctx cancellation.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(attempt int) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var lastErr error
	delay := p.BaseDelay
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}
