package history

import (
	"context"
	"math/rand"
	"time"

	"pagepass/internal/store"
)

const (
	defaultAttempts     = 4
	defaultBaseDelay    = 50 * time.Millisecond
	defaultJitterFactor = 0.3
)

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	jitter    float64
}

// run retries fn while SQLite reports contention. Delays grow as baseDelay,
// 2*baseDelay, 4*baseDelay, each with up to jitter extra.
func (p retryPolicy) run(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Float64() * float64(delay) * p.jitter) //nolint:gosec // jitter only
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil || !store.IsBusy(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
