// Package catalog implements the product lifecycle workflows: create, update,
// and delete. Each workflow is a fixed ordered pipeline of steps run by the
// engine; consistency across the pipeline's independent writes comes from
// step compensations, not a single database transaction.
package catalog

import (
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"shopflow"
	"shopflow/audit"
	"shopflow/event"
	"shopflow/store"
)

// Workflow names.
const (
	WorkflowCreateProduct = "product.create"
	WorkflowUpdateProduct = "product.update"
	WorkflowDeleteProduct = "product.delete"
)

// VariantInput describes one variant to create alongside a product.
type VariantInput struct {
	Title          string
	SKU            string
	Price          float64
	Quantity       int
	AllowBackorder bool
}

// CreateProductInput is the input of the create-product workflow.
type CreateProductInput struct {
	Name           string
	Slug           string
	Description    string
	Price          float64
	Quantity       int
	TrackQuantity  bool
	AllowBackorder bool
	Variants       []VariantInput
	CollectionIDs  []string
}

// UpdateProductInput is the input of the update-product workflow. Only
// non-nil fields are applied; a nil field leaves the stored value untouched.
// CollectionIDs is replace-all semantics: nil leaves the links alone, an
// empty slice removes them all.
type UpdateProductInput struct {
	ProductID     string
	Name          *string
	Slug          *string
	Description   *string
	Price         *float64
	Status        *string
	Quantity      *int
	CollectionIDs []string
}

// Logger is the minimal logging interface the service depends on.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Service runs the product workflows.
type Service struct {
	engine *shopflow.Engine
	store  store.Store
	events event.Bus
	audit  *audit.Recorder
	logger Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithEventBus sets the event bus the terminal emit steps publish on.
func WithEventBus(b event.Bus) ServiceOption {
	return func(s *Service) {
		s.events = b
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(r *audit.Recorder) ServiceOption {
	return func(s *Service) {
		s.audit = r
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a catalog service using the given engine and store.
func NewService(engine *shopflow.Engine, st store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		engine: engine,
		store:  st,
		events: event.NewNoopBus(),
		audit:  audit.NewRecorder(),
		logger: &defaultLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// slugify turns a product name into a URL slug.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// uniqueSuffix returns a short random suffix for slug collision resolution.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// validationError builds a validation failure for a named field.
func validationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", shopflow.ErrValidation, field, reason)
}
