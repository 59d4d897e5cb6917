// Package event provides the typed event bus the workflow engine and the
// inventory reconciler publish domain events through. Subscribers are external
// collaborators such as background jobs, the search indexer, and email
// dispatch; delivery is fire-and-forget and assumed at-least-once by them.
package event

import (
	"time"
)

// Type identifies an event.
type Type string

const (
	// Workflow lifecycle events
	EventWorkflowStarted     Type = "workflow.started"
	EventWorkflowCompleted   Type = "workflow.completed"
	EventWorkflowFailed      Type = "workflow.failed"
	EventWorkflowCompensated Type = "workflow.compensated"

	// Step lifecycle events
	EventStepStarted   Type = "step.started"
	EventStepCompleted Type = "step.completed"
	EventStepFailed    Type = "step.failed"

	// Product domain events
	EventProductCreated Type = "product.created"
	EventProductUpdated Type = "product.updated"
	EventProductDeleted Type = "product.deleted"

	// Order domain events
	EventOrderCreated       Type = "order.created"
	EventOrderStatusChanged Type = "order.status_changed"
	EventOrderConfirmed     Type = "order.confirmed"
	EventOrderProcessing    Type = "order.processing"
	EventOrderShipped       Type = "order.shipped"
	EventOrderDelivered     Type = "order.delivered"
	EventOrderCompleted     Type = "order.completed"
	EventOrderCancelled     Type = "order.cancelled"
	EventOrderReturned      Type = "order.returned"
	EventOrderRefunded      Type = "order.refunded"

	// Inventory domain events
	EventInventoryDecremented Type = "inventory.decremented"
	EventInventoryRestocked   Type = "inventory.restocked"

	// Alert events
	EventAlertWarning  Type = "alert.warning"
	EventAlertCritical Type = "alert.critical"
)

// Event is the payload published on the bus. Every event carries the tenant
// it belongs to and a timestamp; the rest is event-specific data.
type Event struct {
	Type      Type           // event type
	TenantID  string         // owning tenant
	Workflow  string         // workflow name (workflow/step events)
	RunID     string         // workflow run ID (workflow/step events)
	StepID    string         // step ID (step events only)
	EntityID  string         // primary entity ID (domain events)
	Timestamp time.Time      // when the event was created
	Data      map[string]any // additional payload
	Error     error          // error detail (failure events only)
}

// New creates a new event with the given type and sets the timestamp.
func New(t Type) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      make(map[string]any),
	}
}

// WithTenant sets the tenant ID on the event.
func (e Event) WithTenant(tenantID string) Event {
	e.TenantID = tenantID
	return e
}

// WithWorkflow sets the workflow name and run ID on the event.
func (e Event) WithWorkflow(workflow, runID string) Event {
	e.Workflow = workflow
	e.RunID = runID
	return e
}

// WithStep sets the step ID on the event.
func (e Event) WithStep(stepID string) Event {
	e.StepID = stepID
	return e
}

// WithEntity sets the primary entity ID on the event.
func (e Event) WithEntity(entityID string) Event {
	e.EntityID = entityID
	return e
}

// WithError sets the error on the event.
func (e Event) WithError(err error) Event {
	e.Error = err
	return e
}

// WithData sets a key-value pair in the event data.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}
