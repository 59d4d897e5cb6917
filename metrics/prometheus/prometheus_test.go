package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Namespace != "shopflow" {
		t.Errorf("expected namespace 'shopflow', got %q", cfg.Namespace)
	}
	if cfg.Subsystem != "" {
		t.Errorf("expected empty subsystem, got %q", cfg.Subsystem)
	}
	if cfg.Registry != prometheus.DefaultRegisterer {
		t.Error("expected default registry")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if want, ok := labels[l.GetName()]; ok && want != l.GetValue() {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func TestPrometheusMetrics_WorkflowCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Namespace: "test", Registry: reg})

	m.WorkflowStarted("product.create")
	m.WorkflowStarted("product.create")
	m.WorkflowStarted("order.update_status")
	m.WorkflowFailed("product.create", "create-variants")

	if got := counterValue(t, reg, "test_workflow_started_total",
		map[string]string{"workflow": "product.create"}); got != 2 {
		t.Errorf("expected 2 starts, got %v", got)
	}
	if got := counterValue(t, reg, "test_workflow_failed_total",
		map[string]string{"workflow": "product.create", "step": "create-variants"}); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestPrometheusMetrics_Durations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Namespace: "test", Registry: reg})

	m.WorkflowCompleted("product.create", 50*time.Millisecond)
	m.StepCompleted("product.create", "validate", 5*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var sawWorkflow, sawStep bool
	for _, mf := range mfs {
		switch mf.GetName() {
		case "test_workflow_duration_seconds":
			sawWorkflow = true
			if n := mf.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
				t.Errorf("expected 1 workflow duration sample, got %d", n)
			}
		case "test_step_duration_seconds":
			sawStep = true
		}
	}
	if !sawWorkflow || !sawStep {
		t.Errorf("expected both duration histograms, saw workflow=%v step=%v", sawWorkflow, sawStep)
	}
}

func TestPrometheusMetrics_InventoryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Namespace: "test", Registry: reg})

	m.StockDecremented(2, 5)
	m.StockDecremented(1, 1)
	m.StockDecrementError("INSUFFICIENT_STOCK")
	m.StockRestocked(2, 6)
	m.AuditDropped()

	if got := counterValue(t, reg, "test_stock_decremented_units_total", nil); got != 6 {
		t.Errorf("expected 6 decremented units, got %v", got)
	}
	if got := counterValue(t, reg, "test_stock_decrement_errors_total",
		map[string]string{"code": "INSUFFICIENT_STOCK"}); got != 1 {
		t.Errorf("expected 1 decrement error, got %v", got)
	}
	if got := counterValue(t, reg, "test_stock_restocked_units_total", nil); got != 6 {
		t.Errorf("expected 6 restocked units, got %v", got)
	}
	if got := counterValue(t, reg, "test_audit_dropped_total", nil); got != 1 {
		t.Errorf("expected 1 dropped audit, got %v", got)
	}
}
