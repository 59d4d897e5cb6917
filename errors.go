package shopflow

import (
	"errors"
	"fmt"
	"strings"
)

// Workflow errors
var (
	// ErrEmptyWorkflow indicates the workflow definition has no steps
	ErrEmptyWorkflow = errors.New("workflow has no steps")

	// ErrDuplicateStepID indicates two steps in one workflow share an ID
	ErrDuplicateStepID = errors.New("duplicate step id")

	// ErrNilContext indicates the workflow context is missing
	ErrNilContext = errors.New("workflow context is nil")

	// ErrMissingTenant indicates the workflow context has no tenant
	ErrMissingTenant = errors.New("workflow context has no tenant")

	// ErrStepTimeout indicates a step exceeded its execution timeout
	ErrStepTimeout = errors.New("step timeout")

	// ErrStepPanic indicates a step or compensation panicked; the engine
	// converts the panic into an error so one rogue step cannot take the
	// process down
	ErrStepPanic = errors.New("step panic")
)

// Step lookup errors
var (
	// ErrStepNotCompleted indicates no completed step with the given ID exists
	ErrStepNotCompleted = errors.New("step not completed")

	// ErrOutputTypeMismatch indicates a completed step's output has a different type
	ErrOutputTypeMismatch = errors.New("step output type mismatch")
)

// Business-rule errors shared by the workflow compositions. They follow the
// platform taxonomy: validation errors are raised before any mutation,
// not-found and conflict errors are fatal to the single operation.
var (
	// ErrValidation indicates invalid input detected before any mutation
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a business-rule conflict (e.g. deleting a
	// product that existing orders reference)
	ErrConflict = errors.New("conflict")
)

// Config errors
var (
	// ErrInvalidConfig indicates the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CompensationError records a single failed compensation attempt. The engine
// collects these instead of escalating them: a failed rollback is a
// best-effort event, never a new failure surface.
type CompensationError struct {
	// StepID is the ID of the step whose compensation failed.
	StepID string
	// Err is the error returned by the compensation.
	Err error
}

// Error implements the error interface.
func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation for step %s failed: %v", e.StepID, e.Err)
}

// Unwrap returns the underlying compensation error.
func (e *CompensationError) Unwrap() error {
	return e.Err
}

// WorkflowError wraps the forward failure of a workflow run after
// compensation has been attempted. Callers always see the forward failure as
// the cause; compensation outcomes ride along for observability.
type WorkflowError struct {
	// Workflow is the workflow name.
	Workflow string
	// RunID is the workflow run ID.
	RunID string
	// StepID is the ID of the step that failed.
	StepID string
	// Err is the original forward error.
	Err error
	// CompensationErrors contains any compensation failures, in the order
	// the compensations were attempted (reverse completion order).
	CompensationErrors []*CompensationError
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "workflow %s failed at step %s: %v", e.Workflow, e.StepID, e.Err)
	if len(e.CompensationErrors) > 0 {
		fmt.Fprintf(&b, " (%d compensation error(s))", len(e.CompensationErrors))
	}
	return b.String()
}

// Unwrap returns the original forward error so callers can use errors.Is and
// errors.As against the triggering cause.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// FullyCompensated returns true if every attempted compensation succeeded.
func (e *WorkflowError) FullyCompensated() bool {
	return len(e.CompensationErrors) == 0
}
