// Package memory provides the in-process circuit breaker implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"shopflow/circuit"
)

var _ circuit.Breaker = (*MemoryBreaker)(nil)

// MemoryBreaker keeps one breaker per step ID, created lazily on first use.
type MemoryBreaker struct {
	mu       sync.Mutex
	breakers map[string]*stepBreaker
	config   circuit.Config
}

// NewMemoryBreaker creates a breaker manager with default configuration.
func NewMemoryBreaker() *MemoryBreaker {
	return NewMemoryBreakerWithConfig(circuit.DefaultConfig())
}

// NewMemoryBreakerWithConfig creates a breaker manager whose breakers all use
// the given configuration.
func NewMemoryBreakerWithConfig(config circuit.Config) *MemoryBreaker {
	return &MemoryBreaker{
		breakers: make(map[string]*stepBreaker),
		config:   config,
	}
}

// Get returns the breaker for a step, creating it on first use.
func (m *MemoryBreaker) Get(stepID string) circuit.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[stepID]; ok {
		return b
	}
	b := &stepBreaker{config: m.config}
	m.breakers[stepID] = b
	return b
}

// stepBreaker is the breaker for a single step ID.
type stepBreaker struct {
	mu       sync.Mutex
	config   circuit.Config
	state    circuit.State
	stats    circuit.Stats
	openedAt time.Time
	probes   int
}

// Execute runs fn under the breaker.
func (b *stepBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

// allow admits or rejects a call, moving open to half-open once the cooldown
// has elapsed.
func (b *stepBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuit.StateOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return circuit.ErrCircuitOpen
		}
		b.state = circuit.StateHalfOpen
		b.probes = 0
	case circuit.StateHalfOpen:
		if b.probes >= b.config.HalfOpenProbes {
			return circuit.ErrCircuitOpen
		}
	}

	if b.state == circuit.StateHalfOpen {
		b.probes++
	}
	b.stats.Requests++
	return nil
}

func (b *stepBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.stats.Successes++
		b.stats.ConsecutiveSuccesses++
		b.stats.ConsecutiveFailures = 0
		if b.state == circuit.StateHalfOpen &&
			b.stats.ConsecutiveSuccesses >= int64(b.config.HalfOpenProbes) {
			b.state = circuit.StateClosed
			b.probes = 0
		}
		return
	}

	b.stats.Failures++
	b.stats.ConsecutiveFailures++
	b.stats.ConsecutiveSuccesses = 0

	switch b.state {
	case circuit.StateClosed:
		if b.stats.ConsecutiveFailures >= int64(b.config.FailureThreshold) {
			b.trip()
		}
	case circuit.StateHalfOpen:
		// One failed probe reopens the breaker.
		b.trip()
	}
}

func (b *stepBreaker) trip() {
	b.state = circuit.StateOpen
	b.openedAt = time.Now()
	b.probes = 0
}

// State reports the current state. An open breaker whose cooldown has elapsed
// reports half-open; the stored transition happens on the next call.
func (b *stepBreaker) State() circuit.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuit.StateOpen && time.Since(b.openedAt) >= b.config.Cooldown {
		return circuit.StateHalfOpen
	}
	return b.state
}

// Stats reports the running counters.
func (b *stepBreaker) Stats() circuit.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Reset forces the breaker closed and clears its counters.
func (b *stepBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = circuit.StateClosed
	b.stats = circuit.Stats{}
	b.probes = 0
}
