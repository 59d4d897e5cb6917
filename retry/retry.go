// Package retry provides exponential backoff with jitter for at-least-once
// callers, such as background jobs re-driving the inventory decrement.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config holds the backoff configuration.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseInterval is the wait before the first retry.
	BaseInterval time.Duration
	// MaxInterval caps the backoff. Zero means no cap.
	MaxInterval time.Duration
	// Multiplier grows the interval each retry. Values below 1.0 fall back to 2.0.
	Multiplier float64
	// Jitter (0-1) adds randomness to prevent thundering herd.
	Jitter float64
}

// DefaultConfig returns the default backoff configuration: 5 attempts,
// 1s base, doubling, capped at 30s, 10% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		BaseInterval: time.Second,
		MaxInterval:  30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Do runs fn up to cfg.MaxAttempts times, waiting with exponential backoff
// between attempts. It returns nil on the first success, the last error after
// the final attempt, or the context error if the context is cancelled while
// waiting.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := Backoff(cfg, attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	return lastErr
}

// Backoff computes the wait before the given retry attempt (attempt >= 1)
// using base * multiplier^(attempt-1) plus jitter, capped at MaxInterval.
func Backoff(cfg Config, attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier < 1.0 {
		multiplier = 2.0
	}

	backoff := float64(cfg.BaseInterval)
	for i := 1; i < attempt; i++ {
		backoff *= multiplier
	}

	if cfg.Jitter > 0 {
		backoff += backoff * cfg.Jitter * rand.Float64()
	}

	if cfg.MaxInterval > 0 && time.Duration(backoff) > cfg.MaxInterval {
		backoff = float64(cfg.MaxInterval)
	}

	return time.Duration(backoff)
}
