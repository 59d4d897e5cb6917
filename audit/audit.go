// Package audit provides best-effort audit trail recording. Audit writes
// never fail the business operation that produced them: a failed write is
// logged and counted, and the operation's result stands.
package audit

import (
	"context"
	"log"

	"github.com/google/uuid"

	"shopflow/metrics"
	"shopflow/store"
)

// Logger is the minimal logging interface used for dropped entries.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Recorder writes audit entries through a tenant-scoped store handle.
type Recorder struct {
	logger  Logger
	metrics metrics.Metrics
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets a custom logger.
func WithLogger(l Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates a new audit recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		logger:  &defaultLogger{},
		metrics: &metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes an audit entry. The entry gets an ID if it has none. Failures
// are swallowed after logging; Record never returns an error.
func (r *Recorder) Record(ctx context.Context, tx store.Tx, entry *store.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		r.metrics.AuditDropped()
		r.logger.Printf("[Audit] dropped entry action=%s entity=%s/%s tenant=%s: %v",
			entry.Action, entry.EntityType, entry.EntityID, tx.TenantID(), err)
	}
}
