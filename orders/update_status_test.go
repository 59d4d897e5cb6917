package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"shopflow"
	"shopflow/event"
	"shopflow/store"
	"shopflow/store/memory"
)

const testTenant = "tenant-1"

func seedOrder(t *testing.T, st *memory.MemoryStore, orderID, status string) {
	t.Helper()
	err := st.WithTenant(context.Background(), testTenant, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateOrder(ctx, &store.Order{
			ID:     orderID,
			Status: status,
			Total:  19.98,
		})
	})
	if err != nil {
		t.Fatalf("seed order %s: %v", orderID, err)
	}
}

func orderStatus(t *testing.T, st *memory.MemoryStore, orderID string) string {
	t.Helper()
	var status string
	err := st.WithTenant(context.Background(), testTenant, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		status = o.Status
		return nil
	})
	if err != nil {
		t.Fatalf("read order %s: %v", orderID, err)
	}
	return status
}

// ============================================================================
// State Machine Tests
// ============================================================================

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to string
		wantErr  bool
	}{
		{StatusPending, StatusConfirmed, false},
		{StatusPending, StatusCancelled, false},
		{StatusPending, StatusDelivered, true},
		{StatusConfirmed, StatusProcessing, false},
		{StatusProcessing, StatusShipped, false},
		{StatusShipped, StatusDelivered, false},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCompleted, false},
		{StatusDelivered, StatusRefunded, true},
		{StatusReturned, StatusRefunded, false},
		{StatusRefunded, StatusPending, true},
		{StatusCancelled, StatusConfirmed, true},
		{StatusCompleted, StatusReturned, true},
		{"bogus", StatusConfirmed, true},
		{StatusPending, "bogus", true},
	}

	for _, tc := range tests {
		err := ValidateTransition(tc.from, tc.to)
		if tc.wantErr && err == nil {
			t.Errorf("%s -> %s: expected error", tc.from, tc.to)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if tc.wantErr && err != nil && !errors.Is(err, shopflow.ErrValidation) {
			t.Errorf("%s -> %s: expected validation error, got %v", tc.from, tc.to, err)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{StatusRefunded, StatusCancelled, StatusCompleted} {
		if !IsTerminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
	}
	for _, status := range []string{StatusPending, StatusShipped, StatusReturned} {
		if IsTerminal(status) {
			t.Errorf("expected %s to be non-terminal", status)
		}
	}
	if IsTerminal("bogus") {
		t.Error("unknown status must not report terminal")
	}
}

// ============================================================================
// Workflow Tests
// ============================================================================

func TestUpdateOrderStatus(t *testing.T) {
	st := memory.NewMemoryStore()
	seedOrder(t, st, "order-1", StatusPending)

	bus := event.NewMemoryBus()
	var types []event.Type
	bus.SubscribeAll(func(ctx context.Context, e event.Event) error {
		types = append(types, e.Type)
		return nil
	})

	svc := NewService(shopflow.NewEngine(), st, WithEventBus(bus))
	order, err := svc.UpdateOrderStatus(context.Background(), testTenant, UpdateStatusInput{
		OrderID: "order-1",
		Status:  StatusConfirmed,
		Note:    "payment received",
	})
	if err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}
	if order.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %q", order.Status)
	}
	if got := orderStatus(t, st, "order-1"); got != StatusConfirmed {
		t.Errorf("stored status: expected confirmed, got %q", got)
	}

	// History trail.
	err = st.WithTenant(context.Background(), testTenant, func(ctx context.Context, tx store.Tx) error {
		history, err := tx.StatusHistory(ctx, "order-1")
		if err != nil {
			return err
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 history entry, got %d", len(history))
		}
		h := history[0]
		if h.FromStatus != StatusPending || h.ToStatus != StatusConfirmed || h.Note != "payment received" {
			t.Errorf("unexpected history entry: %+v", h)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read history: %v", err)
	}

	// Both the generic and the status-specific event fired.
	var sawChanged, sawConfirmed bool
	for _, ty := range types {
		switch ty {
		case event.EventOrderStatusChanged:
			sawChanged = true
		case event.EventOrderConfirmed:
			sawConfirmed = true
		}
	}
	if !sawChanged || !sawConfirmed {
		t.Errorf("expected status_changed and confirmed events, got %v", types)
	}
}

// failingBus rejects every publish.
type failingBus struct{}

func (failingBus) Publish(ctx context.Context, e event.Event) error { return errors.New("bus down") }
func (failingBus) Subscribe(t event.Type, h event.Handler) error    { return nil }
func (failingBus) SubscribeAll(h event.Handler) error               { return nil }

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestUpdateOrderStatus_PublishFailureLoggedNotFatal(t *testing.T) {
	st := memory.NewMemoryStore()
	seedOrder(t, st, "order-1", StatusPending)

	logger := &captureLogger{}
	svc := NewService(shopflow.NewEngine(), st, WithEventBus(failingBus{}), WithLogger(logger))

	order, err := svc.UpdateOrderStatus(context.Background(), testTenant, UpdateStatusInput{
		OrderID: "order-1",
		Status:  StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}
	if order.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %q", order.Status)
	}

	// Both the generic and the status-specific publish failed and were logged.
	if len(logger.lines) != 2 {
		t.Fatalf("expected 2 logged publish failures, got %v", logger.lines)
	}
	for _, line := range logger.lines {
		if !strings.Contains(line, "bus down") {
			t.Errorf("expected logged line to carry the bus error, got %q", line)
		}
	}
}

func TestUpdateOrderStatus_InvalidTransitionNoMutation(t *testing.T) {
	st := memory.NewMemoryStore()
	seedOrder(t, st, "order-1", StatusPending)
	svc := NewService(shopflow.NewEngine(), st)

	_, err := svc.UpdateOrderStatus(context.Background(), testTenant, UpdateStatusInput{
		OrderID: "order-1",
		Status:  StatusDelivered,
	})
	if !errors.Is(err, shopflow.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Strictly no write before validation passes.
	if got := orderStatus(t, st, "order-1"); got != StatusPending {
		t.Errorf("order row must be untouched, got %q", got)
	}
	err = st.WithTenant(context.Background(), testTenant, func(ctx context.Context, tx store.Tx) error {
		history, err := tx.StatusHistory(ctx, "order-1")
		if err != nil {
			return err
		}
		if len(history) != 0 {
			t.Errorf("expected no history entries, got %d", len(history))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := NewService(shopflow.NewEngine(), st)

	_, err := svc.UpdateOrderStatus(context.Background(), testTenant, UpdateStatusInput{
		OrderID: "ghost",
		Status:  StatusConfirmed,
	})
	if !errors.Is(err, shopflow.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOrderStatus_TerminalStateRejectsAll(t *testing.T) {
	st := memory.NewMemoryStore()
	seedOrder(t, st, "order-1", StatusCancelled)
	svc := NewService(shopflow.NewEngine(), st)

	for _, target := range []string{StatusPending, StatusConfirmed, StatusShipped, StatusRefunded} {
		_, err := svc.UpdateOrderStatus(context.Background(), testTenant, UpdateStatusInput{
			OrderID: "order-1",
			Status:  target,
		})
		if !errors.Is(err, shopflow.ErrValidation) {
			t.Errorf("cancelled -> %s: expected validation error, got %v", target, err)
		}
	}
}
