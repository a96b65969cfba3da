package provider

import (
	"context"
	"errors"
	"time"

	"tradesim/internal/client"

	"golang.org/x/time/rate"
)

const (
	minRequestInterval = 100 * time.Millisecond
	maxAttempts        = 3
	backoffStep        = time.Second
)

// throttle enforces a per-provider minimum inter-request interval and a
// bounded linear-backoff retry against transient upstream failures. A 4xx
// response aborts immediately; the token is not there and retrying will not
// change that.
type throttle struct {
	limiter  *rate.Limiter
	attempts int
	step     time.Duration
}

func newThrottle() throttle {
	return throttle{
		limiter:  rate.NewLimiter(rate.Every(minRequestInterval), 1),
		attempts: maxAttempts,
		step:     backoffStep,
	}
}

func (t *throttle) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var statusErr *client.StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.Transient() {
			return lastErr
		}
		if attempt < t.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * t.step):
			}
		}
	}
	return lastErr
}
