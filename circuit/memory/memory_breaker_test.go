package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopflow/circuit"
)

var errFail = errors.New("collaborator down")

func failN(t *testing.T, cb circuit.CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := cb.Execute(context.Background(), func() error { return errFail }); !errors.Is(err, errFail) {
			t.Fatalf("failure %d: expected errFail, got %v", i, err)
		}
	}
}

func TestMemoryBreaker_PerStepInstances(t *testing.T) {
	m := NewMemoryBreaker()

	a := m.Get("emit-event")
	b := m.Get("index-product")
	if a == b {
		t.Error("expected distinct breakers per step ID")
	}
	if m.Get("emit-event") != a {
		t.Error("expected the same breaker on repeated Get")
	}
}

func TestMemoryBreaker_OpensAfterThreshold(t *testing.T) {
	m := NewMemoryBreakerWithConfig(circuit.Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		HalfOpenProbes:   1,
	})
	cb := m.Get("emit-event")

	failN(t, cb, 2)
	if cb.State() != circuit.StateClosed {
		t.Fatalf("expected closed below threshold, got %v", cb.State())
	}

	failN(t, cb, 1)
	if cb.State() != circuit.StateOpen {
		t.Fatalf("expected open at threshold, got %v", cb.State())
	}

	// Open breaker rejects without calling fn.
	called := false
	err := cb.Execute(context.Background(), func() error { called = true; return nil })
	if !errors.Is(err, circuit.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("open breaker must not invoke fn")
	}
}

func TestMemoryBreaker_SuccessResetsFailureStreak(t *testing.T) {
	m := NewMemoryBreakerWithConfig(circuit.Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		HalfOpenProbes:   1,
	})
	cb := m.Get("emit-event")

	failN(t, cb, 2)
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("success: %v", err)
	}
	failN(t, cb, 2)

	if cb.State() != circuit.StateClosed {
		t.Errorf("interleaved successes must keep the breaker closed, got %v", cb.State())
	}
}

func TestMemoryBreaker_HalfOpenRecovery(t *testing.T) {
	m := NewMemoryBreakerWithConfig(circuit.Config{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
		HalfOpenProbes:   2,
	})
	cb := m.Get("emit-event")

	failN(t, cb, 1)
	if cb.State() != circuit.StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if cb.State() != circuit.StateHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %v", cb.State())
	}

	// Two successful probes close the breaker.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.State() != circuit.StateClosed {
		t.Errorf("expected closed after successful probes, got %v", cb.State())
	}
}

func TestMemoryBreaker_HalfOpenFailureReopens(t *testing.T) {
	m := NewMemoryBreakerWithConfig(circuit.Config{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
		HalfOpenProbes:   2,
	})
	cb := m.Get("emit-event")

	failN(t, cb, 1)
	time.Sleep(20 * time.Millisecond)
	failN(t, cb, 1)

	if cb.State() != circuit.StateOpen {
		t.Errorf("expected a failed probe to reopen the breaker, got %v", cb.State())
	}
}

func TestMemoryBreaker_Reset(t *testing.T) {
	m := NewMemoryBreakerWithConfig(circuit.Config{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		HalfOpenProbes:   1,
	})
	cb := m.Get("emit-event")

	failN(t, cb, 1)
	cb.Reset()

	if cb.State() != circuit.StateClosed {
		t.Errorf("expected closed after reset, got %v", cb.State())
	}
	if stats := cb.Stats(); stats.Requests != 0 || stats.Failures != 0 {
		t.Errorf("expected cleared stats, got %+v", stats)
	}
}
