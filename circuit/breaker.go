// Package circuit provides circuit breaker protection for workflow steps
// that call external collaborators (search indexing, email dispatch, event
// fan-out).
package circuit

import (
	"context"
	"errors"
	"time"
)

// ErrCircuitOpen indicates the breaker is open and the call was rejected
// without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a single breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker open.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects calls before letting
	// probes through.
	Cooldown time.Duration
	// HalfOpenProbes is how many probe calls the half-open state admits,
	// and how many must succeed in a row to close the breaker again.
	HalfOpenProbes int
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   3,
	}
}

// Stats are a breaker's running counters.
type Stats struct {
	Requests             int64
	Successes            int64
	Failures             int64
	ConsecutiveSuccesses int64
	ConsecutiveFailures  int64
}

// Breaker hands out one circuit breaker per step ID.
type Breaker interface {
	Get(stepID string) CircuitBreaker
}

// CircuitBreaker guards calls for a single step.
type CircuitBreaker interface {
	// Execute runs fn unless the breaker is open. The fn error is returned
	// as-is; a rejected call returns ErrCircuitOpen.
	Execute(ctx context.Context, fn func() error) error
	// State reports the current state.
	State() State
	// Stats reports the running counters.
	Stats() Stats
	// Reset forces the breaker closed and clears its counters.
	Reset()
}
