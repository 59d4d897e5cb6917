package orders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"shopflow"
	"shopflow/audit"
	"shopflow/event"
	"shopflow/store"
)

// WorkflowUpdateOrderStatus is the workflow name.
const WorkflowUpdateOrderStatus = "order.update_status"

// statusEvents maps a target status to its domain event type.
var statusEvents = map[string]event.Type{
	StatusConfirmed:  event.EventOrderConfirmed,
	StatusProcessing: event.EventOrderProcessing,
	StatusShipped:    event.EventOrderShipped,
	StatusDelivered:  event.EventOrderDelivered,
	StatusCompleted:  event.EventOrderCompleted,
	StatusCancelled:  event.EventOrderCancelled,
	StatusReturned:   event.EventOrderReturned,
	StatusRefunded:   event.EventOrderRefunded,
}

// UpdateStatusInput is the input of the update-order-status workflow.
type UpdateStatusInput struct {
	OrderID string
	Status  string
	// Note is an optional free-form annotation recorded on the status
	// history entry.
	Note string
}

// Logger is the minimal logging interface the service depends on.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Service runs the order workflows.
type Service struct {
	engine *shopflow.Engine
	store  store.Store
	events event.Bus
	audit  *audit.Recorder
	logger Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithEventBus sets the event bus the terminal emit step publishes on.
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

// NewService creates an orders service using the given engine and store.
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

// updateStatusState is the typed accumulator threaded through the steps.
type updateStatusState struct {
	input UpdateStatusInput
	order *store.Order
	// previous is the status before the write, kept for compensation and
	// the history entry.
	previous string
}

// UpdateOrderStatus runs the update-order-status workflow: the transition is
// validated against the state machine strictly before any write, the status
// write carries a revert compensation, the history append is best-effort, and
// a status-specific event closes the pipeline.
func (s *Service) UpdateOrderStatus(ctx context.Context, tenantID string, input UpdateStatusInput) (*store.Order, error) {
	var updated *store.Order
	err := s.store.WithTenant(ctx, tenantID, func(ctx context.Context, tx store.Tx) error {
		wf := shopflow.NewContext(tenantID, tx)
		res, err := s.engine.Run(ctx, s.updateStatusWorkflow(), wf, input)
		if err != nil {
			return err
		}
		state := res.Output.(*updateStatusState)
		updated = state.order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) updateStatusWorkflow() *shopflow.Definition {
	return shopflow.NewWorkflow(WorkflowUpdateOrderStatus).
		Step(s.validateTransitionStep()).
		Step(s.updateStatusStep()).
		Step(s.appendHistoryStep()).
		Step(s.emitStatusEventStep()).
		MustBuild()
}

// validateTransitionStep loads the order and checks the transition against
// the state machine. No mutation happens before this step passes.
func (s *Service) validateTransitionStep() shopflow.Step {
	return shopflow.NewFuncStep("validate-transition", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		in, ok := input.(UpdateStatusInput)
		if !ok {
			return nil, fmt.Errorf("%w: expected UpdateStatusInput, got %T", shopflow.ErrValidation, input)
		}
		if in.OrderID == "" {
			return nil, fmt.Errorf("%w: order_id is required", shopflow.ErrValidation)
		}

		order, err := wf.Tx.GetOrder(ctx, in.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", shopflow.ErrNotFound, in.OrderID)
		}
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}

		if err := ValidateTransition(order.Status, in.Status); err != nil {
			return nil, err
		}

		return &shopflow.StepResult{Output: &updateStatusState{
			input:    in,
			order:    order,
			previous: order.Status,
		}}, nil
	})
}

// statusRevertData is the compensation payload of update-status.
type statusRevertData struct {
	orderID  string
	previous string
}

// updateStatusStep writes the new status. Compensation reverts to the
// previous status.
func (s *Service) updateStatusStep() shopflow.Step {
	return shopflow.NewFuncStep("update-status", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateStatusState)

		if err := wf.Tx.UpdateOrderStatus(ctx, state.order.ID, state.input.Status); err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		state.order.Status = state.input.Status

		return &shopflow.StepResult{
			Output:           state,
			CompensationData: statusRevertData{orderID: state.order.ID, previous: state.previous},
		}, nil
	}).WithCompensation(func(ctx context.Context, wf *shopflow.Context, data any) error {
		rd := data.(statusRevertData)
		return wf.Tx.UpdateOrderStatus(ctx, rd.orderID, rd.previous)
	})
}

// appendHistoryStep appends the status trail entry. Best-effort: a history
// failure is logged and the workflow continues.
func (s *Service) appendHistoryStep() shopflow.Step {
	return shopflow.NewFuncStep("append-history", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateStatusState)

		entry := &store.StatusHistoryEntry{
			ID:         uuid.New().String(),
			OrderID:    state.order.ID,
			FromStatus: state.previous,
			ToStatus:   state.order.Status,
			Note:       state.input.Note,
		}
		if err := wf.Tx.AppendStatusHistory(ctx, entry); err != nil {
			s.logger.Printf("[Orders] failed to append status history for order %s (%s -> %s): %v",
				state.order.ID, state.previous, state.order.Status, err)
		}

		return &shopflow.StepResult{Output: state}, nil
	})
}

// emitStatusEventStep records the audit entry and publishes the
// status-specific event plus the generic status-changed event.
func (s *Service) emitStatusEventStep() shopflow.Step {
	return shopflow.NewFuncStep("emit-event", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateStatusState)

		s.audit.Record(ctx, wf.Tx, &store.AuditEntry{
			Action:     "order.update_status",
			EntityType: "order",
			EntityID:   state.order.ID,
			OldValues:  map[string]any{"status": state.previous},
			NewValues:  map[string]any{"status": state.order.Status},
		})

		if err := s.events.Publish(ctx, event.New(event.EventOrderStatusChanged).
			WithTenant(wf.TenantID).
			WithWorkflow(wf.Workflow, wf.RunID).
			WithEntity(state.order.ID).
			WithData("from", state.previous).
			WithData("to", state.order.Status)); err != nil {
			s.logger.Printf("[Orders] publish order.status_changed for %s failed: %v", state.order.ID, err)
		}

		if t, ok := statusEvents[state.order.Status]; ok {
			if err := s.events.Publish(ctx, event.New(t).
				WithTenant(wf.TenantID).
				WithWorkflow(wf.Workflow, wf.RunID).
				WithEntity(state.order.ID).
				WithData("from", state.previous)); err != nil {
				s.logger.Printf("[Orders] publish %s for %s failed: %v", t, state.order.ID, err)
			}
		}

		return &shopflow.StepResult{Output: state}, nil
	})
}
