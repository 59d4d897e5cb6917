package shopflow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"shopflow/store"
)

// CompletedStep records one successfully executed step of the current run.
type CompletedStep struct {
	// ID is the step ID.
	ID string
	// Output is the step's forward output.
	Output any
	// CompensationData is what the step handed back for rollback.
	CompensationData any
}

// Context is the per-execution state threaded through all steps of one
// workflow run. It is created fresh per invocation and discarded after the
// result is returned; nothing in it survives across calls other than what
// steps durably write through the store handle.
type Context struct {
	// RunID uniquely identifies this workflow run, for logging and audit
	// correlation.
	RunID string

	// Workflow is the name of the workflow being executed. Set by the
	// engine before the first step runs.
	Workflow string

	// TenantID identifies the tenant; every mutation a step performs must
	// be scoped to it.
	TenantID string

	// Tx is the tenant-scoped store handle owned by the caller. The engine
	// never creates or closes it; steps use it for all persistence. It
	// must not be shared across concurrent workflow runs.
	Tx store.Tx

	// StepIndex is the index of the step currently executing.
	StepIndex int

	mu        sync.RWMutex
	completed []CompletedStep
	metadata  map[string]string
}

// NewContext creates a workflow context bound to a tenant and its store
// handle. The run ID is generated automatically.
func NewContext(tenantID string, tx store.Tx) *Context {
	return &Context{
		RunID:    uuid.New().String(),
		TenantID: tenantID,
		Tx:       tx,
		metadata: make(map[string]string),
	}
}

// appendCompleted records a successfully executed step. Called only by the
// engine during forward execution; the list is append-only.
func (c *Context) appendCompleted(cs CompletedStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, cs)
}

// CompletedSteps returns a copy of the completed steps in insertion order.
func (c *Context) CompletedSteps() []CompletedStep {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CompletedStep, len(c.completed))
	copy(out, c.completed)
	return out
}

// Completed returns the completed step with the given ID, if any. Later
// steps use this to read earlier steps' outputs without positional coupling.
func (c *Context) Completed(id string) (CompletedStep, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cs := range c.completed {
		if cs.ID == id {
			return cs, true
		}
	}
	return CompletedStep{}, false
}

// SetMetadata sets a metadata value on the run.
func (c *Context) SetMetadata(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		c.metadata = make(map[string]string)
	}
	c.metadata[key] = value
}

// GetMetadata retrieves a metadata value by key.
func (c *Context) GetMetadata(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// CompletedOutputAs is a type-safe getter for a completed step's output.
func CompletedOutputAs[T any](c *Context, id string) (T, error) {
	var zero T
	cs, ok := c.Completed(id)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrStepNotCompleted, id)
	}
	typed, ok := cs.Output.(T)
	if !ok {
		return zero, fmt.Errorf("%w: step %s expected %T but got %T", ErrOutputTypeMismatch, id, zero, cs.Output)
	}
	return typed, nil
}
