// Package prometheus provides a Prometheus implementation of the metrics interface.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shopflow/metrics"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	// Workflow metrics
	workflowStartedTotal     *prometheus.CounterVec
	workflowCompletedTotal   *prometheus.CounterVec
	workflowFailedTotal      *prometheus.CounterVec
	workflowCompensatedTotal *prometheus.CounterVec
	compensationFailedTotal  *prometheus.CounterVec
	workflowDuration         *prometheus.HistogramVec

	// Step metrics
	stepStartedTotal   *prometheus.CounterVec
	stepCompletedTotal *prometheus.CounterVec
	stepFailedTotal    *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec

	// Inventory metrics
	stockDecrementedItems prometheus.Counter
	stockDecrementedUnits prometheus.Counter
	stockDecrementErrors  *prometheus.CounterVec
	stockRestockedItems   prometheus.Counter
	stockRestockedUnits   prometheus.Counter

	// Audit metrics
	auditDroppedTotal prometheus.Counter
}

var _ metrics.Metrics = (*PrometheusMetrics)(nil)

// Config holds configuration for PrometheusMetrics.
type Config struct {
	// Namespace is the prefix for all metrics (e.g., "shopflow")
	Namespace string
	// Subsystem is an optional subsystem name
	Subsystem string
	// Registry is the Prometheus registry to use. If nil, the default registry is used.
	Registry prometheus.Registerer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace: "shopflow",
		Subsystem: "",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// New creates a new PrometheusMetrics instance with the given configuration.
func New(cfg Config) *PrometheusMetrics {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(cfg.Registry)

	return &PrometheusMetrics{
		workflowStartedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "workflow_started_total",
			Help:      "Total number of workflow runs started",
		}, []string{"workflow"}),

		workflowCompletedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "workflow_completed_total",
			Help:      "Total number of workflow runs completed successfully",
		}, []string{"workflow"}),

		workflowFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "workflow_failed_total",
			Help:      "Total number of workflow runs failed",
		}, []string{"workflow", "step"}),

		workflowCompensatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "workflow_compensated_total",
			Help:      "Total number of workflow runs fully compensated after failure",
		}, []string{"workflow"}),

		compensationFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "compensation_failed_total",
			Help:      "Total number of step compensations that failed",
		}, []string{"workflow", "step"}),

		workflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"workflow"}),

		stepStartedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "step_started_total",
			Help:      "Total number of steps started",
		}, []string{"workflow", "step"}),

		stepCompletedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "step_completed_total",
			Help:      "Total number of steps completed successfully",
		}, []string{"workflow", "step"}),

		stepFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "step_failed_total",
			Help:      "Total number of steps failed",
		}, []string{"workflow", "step"}),

		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "step_duration_seconds",
			Help:      "Step duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"workflow", "step"}),

		stockDecrementedItems: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stock_decremented_items_total",
			Help:      "Total number of line items decremented",
		}),

		stockDecrementedUnits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stock_decremented_units_total",
			Help:      "Total number of stock units decremented",
		}),

		stockDecrementErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stock_decrement_errors_total",
			Help:      "Total number of per-item decrement errors",
		}, []string{"code"}),

		stockRestockedItems: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stock_restocked_items_total",
			Help:      "Total number of line items restocked",
		}),

		stockRestockedUnits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stock_restocked_units_total",
			Help:      "Total number of stock units restocked",
		}),

		auditDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_dropped_total",
			Help:      "Total number of audit entries dropped after write failures",
		}),
	}
}

// Workflow metrics

func (p *PrometheusMetrics) WorkflowStarted(workflow string) {
	p.workflowStartedTotal.WithLabelValues(workflow).Inc()
}

func (p *PrometheusMetrics) WorkflowCompleted(workflow string, duration time.Duration) {
	p.workflowCompletedTotal.WithLabelValues(workflow).Inc()
	p.workflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) WorkflowFailed(workflow string, stepID string) {
	p.workflowFailedTotal.WithLabelValues(workflow, stepID).Inc()
}

func (p *PrometheusMetrics) WorkflowCompensated(workflow string) {
	p.workflowCompensatedTotal.WithLabelValues(workflow).Inc()
}

func (p *PrometheusMetrics) CompensationFailed(workflow, stepID string) {
	p.compensationFailedTotal.WithLabelValues(workflow, stepID).Inc()
}

// Step metrics

func (p *PrometheusMetrics) StepStarted(workflow, stepID string) {
	p.stepStartedTotal.WithLabelValues(workflow, stepID).Inc()
}

func (p *PrometheusMetrics) StepCompleted(workflow, stepID string, duration time.Duration) {
	p.stepCompletedTotal.WithLabelValues(workflow, stepID).Inc()
	p.stepDuration.WithLabelValues(workflow, stepID).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) StepFailed(workflow, stepID string) {
	p.stepFailedTotal.WithLabelValues(workflow, stepID).Inc()
}

// Inventory metrics

func (p *PrometheusMetrics) StockDecremented(items int, units int) {
	p.stockDecrementedItems.Add(float64(items))
	p.stockDecrementedUnits.Add(float64(units))
}

func (p *PrometheusMetrics) StockDecrementError(code string) {
	p.stockDecrementErrors.WithLabelValues(code).Inc()
}

func (p *PrometheusMetrics) StockRestocked(items int, units int) {
	p.stockRestockedItems.Add(float64(items))
	p.stockRestockedUnits.Add(float64(units))
}

// Audit metrics

func (p *PrometheusMetrics) AuditDropped() {
	p.auditDroppedTotal.Inc()
}
