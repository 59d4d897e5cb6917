// Package metrics provides the metrics interface for the workflow engine and
// the inventory reconciler.
package metrics

import (
	"time"
)

// Metrics defines the interface for collecting observability metrics.
// Implementations can use Prometheus, StatsD, or other metrics backends.
type Metrics interface {
	// Workflow metrics
	WorkflowStarted(workflow string)
	WorkflowCompleted(workflow string, duration time.Duration)
	WorkflowFailed(workflow string, stepID string)
	WorkflowCompensated(workflow string)
	CompensationFailed(workflow, stepID string)

	// Step metrics
	StepStarted(workflow, stepID string)
	StepCompleted(workflow, stepID string, duration time.Duration)
	StepFailed(workflow, stepID string)

	// Inventory metrics
	StockDecremented(items int, units int)
	StockDecrementError(code string)
	StockRestocked(items int, units int)

	// Audit metrics
	AuditDropped()
}

// NoopMetrics is a no-op implementation of Metrics for testing or when
// metrics are disabled.
type NoopMetrics struct{}

var _ Metrics = (*NoopMetrics)(nil)

func (n *NoopMetrics) WorkflowStarted(workflow string)                                {}
func (n *NoopMetrics) WorkflowCompleted(workflow string, duration time.Duration)      {}
func (n *NoopMetrics) WorkflowFailed(workflow string, stepID string)                  {}
func (n *NoopMetrics) WorkflowCompensated(workflow string)                            {}
func (n *NoopMetrics) CompensationFailed(workflow, stepID string)                     {}
func (n *NoopMetrics) StepStarted(workflow, stepID string)                            {}
func (n *NoopMetrics) StepCompleted(workflow, stepID string, duration time.Duration)  {}
func (n *NoopMetrics) StepFailed(workflow, stepID string)                             {}
func (n *NoopMetrics) StockDecremented(items int, units int)                          {}
func (n *NoopMetrics) StockDecrementError(code string)                                {}
func (n *NoopMetrics) StockRestocked(items int, units int)                            {}
func (n *NoopMetrics) AuditDropped()                                                  {}
