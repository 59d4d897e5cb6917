package shopflow

import "context"

// StepResult is what a successful step execution hands back to the engine.
type StepResult struct {
	// Output becomes the input of the next step and is recorded in the
	// workflow context so later steps can look it up by step ID.
	Output any

	// CompensationData is exactly what the step's Compensate needs to undo
	// the work, decoupled from Output: what the next step needs is not
	// what undo needs.
	CompensationData any
}

// Step defines a named unit of work inside a workflow. Steps are pure
// orchestration: they mutate external state through the tenant-scoped store
// handle on the Context and never hold state themselves.
type Step interface {
	// ID returns the step ID, unique within a workflow.
	ID() string

	// Execute performs the forward action. The input is the previous
	// step's output (or the workflow's initial input for the first step).
	Execute(ctx context.Context, wf *Context, input any) (*StepResult, error)

	// Compensate undoes a previously successful execution. It receives the
	// CompensationData the forward action returned, not the full output.
	// A compensable step must be safe to compensate exactly once; the
	// engine never re-runs a failed compensation.
	Compensate(ctx context.Context, wf *Context, data any) error

	// Compensable returns whether this step defines a compensation action.
	// Steps with external, non-reversible side effects (event emission)
	// return false and are skipped silently during rollback.
	Compensable() bool
}

// BaseStep provides a default implementation of the Step interface that can
// be embedded in custom step implementations.
type BaseStep struct {
	id string
}

// NewBaseStep creates a new BaseStep with the given ID.
func NewBaseStep(id string) *BaseStep {
	return &BaseStep{id: id}
}

// ID returns the step ID.
func (s *BaseStep) ID() string {
	return s.id
}

// Execute is a no-op implementation that should be overridden.
func (s *BaseStep) Execute(ctx context.Context, wf *Context, input any) (*StepResult, error) {
	return &StepResult{Output: input}, nil
}

// Compensate is a no-op by default.
func (s *BaseStep) Compensate(ctx context.Context, wf *Context, data any) error {
	return nil
}

// Compensable returns false by default.
func (s *BaseStep) Compensable() bool {
	return false
}

// FuncStep builds a step from closures. It is the lightweight way the
// workflow compositions declare their fixed pipelines.
type FuncStep struct {
	id         string
	execute    func(ctx context.Context, wf *Context, input any) (*StepResult, error)
	compensate func(ctx context.Context, wf *Context, data any) error
}

// NewFuncStep creates a step with the given ID and forward action.
func NewFuncStep(id string, execute func(ctx context.Context, wf *Context, input any) (*StepResult, error)) *FuncStep {
	return &FuncStep{id: id, execute: execute}
}

// WithCompensation attaches a compensation action and returns the step.
func (s *FuncStep) WithCompensation(compensate func(ctx context.Context, wf *Context, data any) error) *FuncStep {
	s.compensate = compensate
	return s
}

// ID returns the step ID.
func (s *FuncStep) ID() string {
	return s.id
}

// Execute runs the forward action.
func (s *FuncStep) Execute(ctx context.Context, wf *Context, input any) (*StepResult, error) {
	return s.execute(ctx, wf, input)
}

// Compensate runs the compensation action, if any.
func (s *FuncStep) Compensate(ctx context.Context, wf *Context, data any) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx, wf, data)
}

// Compensable returns true when a compensation action is attached.
func (s *FuncStep) Compensable() bool {
	return s.compensate != nil
}
