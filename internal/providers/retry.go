package providers

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

const maxRetries = 3

// backoffBase is the first retry delay; it doubles on every attempt.
var backoffBase = time.Second

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 5)
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// Only rate limits are retried; auth and everything else fail fast.
		var rl *rateLimitError
		if !errors.As(lastErr, &rl) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := backoffBase * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
