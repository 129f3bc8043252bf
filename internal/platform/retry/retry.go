// Package retry implements the exponential-backoff wrapper consumers
// run a handler through before giving up to the DLQ.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config is the retry budget: at least one attempt, backoff doubling from
// InitialBackoff up to MaxBackoff.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig is a conservative consumer-side retry budget.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Do runs fn, retrying on error up to cfg.MaxAttempts total attempts with
// exponential backoff between tries. It returns as soon as any attempt
// succeeds, or the last error once attempts are exhausted. Sleeps respect
// ctx cancellation. Equivalent to calling DoUntil with a predicate that
// always allows another attempt.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	return DoUntil(ctx, cfg, fn, nil)
}

// DoUntil is Do with an early-exit hook: stop reports whether err should
// end the loop immediately rather than consume another attempt, for
// callers that can tell a deterministic failure (bad input, a governance
// rule) from one worth another try. A nil stop behaves exactly like Do.
func DoUntil(ctx context.Context, cfg Config, fn func(ctx context.Context) error, stop func(err error) bool) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if stop != nil && stop(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(backoff)):
		}
		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}

// jitter adds up to 20% random variance so many consumers backing off in
// lockstep do not retry in a synchronized thundering herd.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	variance := time.Duration(rand.Int63n(int64(d) / 5))
	return d + variance
}
