// Package inventory implements stock decrement reconciliation for orders.
//
// Reconciliation is deliberately not a saga: items in one batch succeed and
// fail independently, because decrementing stock for the valid items of an
// order must still happen when one line is bad. The business rule is "ship
// what you can, flag what you can't."
package inventory

import (
	"fmt"
	"log"
	"time"

	"shopflow/audit"
	"shopflow/event"
	"shopflow/idempotency"
	"shopflow/lock"
	"shopflow/metrics"
	"shopflow/store"
	"shopflow/tracing"
)

// ErrorCode classifies a per-item failure.
type ErrorCode string

const (
	// CodeVariantNotFound means the referenced variant does not exist for
	// the tenant.
	CodeVariantNotFound ErrorCode = "VARIANT_NOT_FOUND"

	// CodeProductNotFound means the referenced product does not exist for
	// the tenant (product-level decrement path only).
	CodeProductNotFound ErrorCode = "PRODUCT_NOT_FOUND"

	// CodeInsufficientStock means stock would go negative and backorder is
	// not allowed.
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"

	// CodeUnknownError covers store failures while writing the decrement.
	CodeUnknownError ErrorCode = "UNKNOWN_ERROR"
)

// LineItem is one line of an order to decrement stock for. The variant path
// keys off VariantID; the product-level path keys off ProductID.
type LineItem struct {
	VariantID   string `json:"variant_id,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
}

// DecrementedItem records one successful decrement.
type DecrementedItem struct {
	VariantID      string `json:"variant_id,omitempty"`
	ProductID      string `json:"product_id,omitempty"`
	ProductName    string `json:"product_name,omitempty"`
	QuantityBefore int    `json:"quantity_before"`
	QuantityAfter  int    `json:"quantity_after"`
	Decremented    int    `json:"decremented"`
}

// ItemError records one failed item.
type ItemError struct {
	VariantID string    `json:"variant_id,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
}

// Result is the aggregate outcome of one reconciliation batch. Both lists are
// always populated; Success is true iff Errors is empty. Callers decide how
// to react; the batch itself never fails on item-level problems.
type Result struct {
	Success          bool              `json:"success"`
	DecrementedItems []DecrementedItem `json:"decremented_items"`
	Errors           []ItemError       `json:"errors"`
	// TotalUnits is the sum of actually decremented units across all items.
	TotalUnits int `json:"total_units"`
	// Replayed is true when the batch was skipped because an identical run
	// for the same order was already recorded.
	Replayed bool `json:"replayed,omitempty"`
}

// Options control a single reconciliation batch.
type Options struct {
	// AllowBackorder permits decrementing below zero for every item in the
	// batch, regardless of the per-variant flag.
	AllowBackorder bool

	// SkipInsufficientStock records insufficient-stock items as errors
	// without flipping the aggregate Success flag. Background jobs set this;
	// interactive callers usually do not.
	SkipInsufficientStock bool
}

// Logger is the minimal logging interface the service depends on.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Config holds the service configuration.
type Config struct {
	// IdempotencyTTL is how long a completed batch result is remembered.
	IdempotencyTTL time.Duration

	// LockTTL bounds the per-order lock when a locker is configured.
	LockTTL time.Duration

	// MaxAdjustRetries bounds the reread-and-retry loop when a conditional
	// quantity write loses a race.
	MaxAdjustRetries int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		IdempotencyTTL:   24 * time.Hour,
		LockTTL:          30 * time.Second,
		MaxAdjustRetries: 3,
	}
}

// Service performs stock reconciliation against the tenant-scoped store.
type Service struct {
	store   store.Store
	events  event.Bus
	metrics metrics.Metrics
	tracer  tracing.Tracer
	locker  lock.Locker
	checker idempotency.Checker
	logger  Logger
	audit   *audit.Recorder
	config  Config
}

// ServiceOption is a function that configures the Service.
type ServiceOption func(*Service)

// WithEventBus sets the event bus.
func WithEventBus(b event.Bus) ServiceOption {
	return func(s *Service) {
		s.events = b
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracing.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithLocker sets a distributed locker. When set, each batch holds a
// per-order lock so concurrent jobs for the same order serialize.
func WithLocker(l lock.Locker) ServiceOption {
	return func(s *Service) {
		s.locker = l
	}
}

// WithChecker sets an idempotency checker. When set, a repeated batch for the
// same order returns the recorded result instead of decrementing again.
func WithChecker(c idempotency.Checker) ServiceOption {
	return func(s *Service) {
		s.checker = c
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithAuditRecorder sets the audit recorder used for batch summaries.
func WithAuditRecorder(r *audit.Recorder) ServiceOption {
	return func(s *Service) {
		s.audit = r
	}
}

// WithServiceConfig sets the service configuration.
func WithServiceConfig(cfg Config) ServiceOption {
	return func(s *Service) {
		s.config = cfg
	}
}

// NewService creates a reconciliation service over the given store.
func NewService(st store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   st,
		events:  event.NewNoopBus(),
		metrics: &metrics.NoopMetrics{},
		tracer:  &tracing.NoopTracer{},
		logger:  &defaultLogger{},
		audit:   audit.NewRecorder(),
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// idempotencyKey builds the per-order key under which a completed batch
// result is remembered.
func idempotencyKey(tenantID, orderID string) string {
	return fmt.Sprintf("inventory:decrement:%s:%s", tenantID, orderID)
}

// lockKey builds the per-order lock key.
func lockKey(tenantID, orderID string) string {
	return fmt.Sprintf("inventory:order:%s:%s", tenantID, orderID)
}
