package shopflow

import (
	"context"
	"fmt"
	"time"

	"shopflow/circuit"
	"shopflow/event"
	"shopflow/metrics"
	"shopflow/tracing"
)

// Result represents the outcome of a successful workflow run.
type Result struct {
	// RunID is the workflow run ID.
	RunID string
	// Workflow is the workflow name.
	Workflow string
	// Output is the final step's output.
	Output any
	// Duration is the total execution time.
	Duration time.Duration
}

// Engine executes workflow definitions: steps run in declared order, each
// step's output feeding the next, and on failure the completed steps are
// compensated in reverse completion order. The engine holds no per-run state;
// a single Engine is safe for concurrent runs as long as each run gets its
// own Context.
type Engine struct {
	events  event.Bus
	breaker circuit.Breaker
	metrics metrics.Metrics
	tracer  tracing.Tracer
	logger  Logger
	config  Config
}

// EngineOption is a function that configures the Engine.
type EngineOption func(*Engine)

// WithEventBus sets the event bus for the engine.
func WithEventBus(b event.Bus) EngineOption {
	return func(e *Engine) {
		e.events = b
	}
}

// WithBreaker sets the circuit breaker manager. When set, every step executes
// under the breaker keyed by its step ID.
func WithBreaker(b circuit.Breaker) EngineOption {
	return func(e *Engine) {
		e.breaker = b
	}
}

// WithMetrics sets the metrics collector for the engine.
func WithMetrics(m metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer for the engine.
func WithTracer(t tracing.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithConfig sets the engine configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.config = cfg
	}
}

// NewEngine creates a new Engine with the given options.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		events:  event.NewNoopBus(),
		metrics: &metrics.NoopMetrics{},
		tracer:  &tracing.NoopTracer{},
		logger:  &defaultLogger{},
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the workflow against the given context. The input is handed to
// the first step; each subsequent step receives the previous step's output.
//
// On a step failure, every previously completed step that declares a
// compensation is compensated exactly once, in reverse completion order, and
// the returned error is a *WorkflowError wrapping the forward failure.
// Compensation failures never mask the forward error; they are collected on
// the WorkflowError and surfaced as critical alerts.
func (e *Engine) Run(ctx context.Context, def *Definition, wf *Context, input any) (*Result, error) {
	startTime := time.Now()

	if def == nil || def.Len() == 0 {
		return nil, ErrEmptyWorkflow
	}
	if wf == nil {
		return nil, ErrNilContext
	}
	if wf.TenantID == "" {
		return nil, ErrMissingTenant
	}

	wf.Workflow = def.Name()

	ctx, wfSpan := e.tracer.StartWorkflow(ctx, def.Name(), wf.RunID, wf.TenantID)
	defer wfSpan.End()

	e.metrics.WorkflowStarted(def.Name())
	e.publishEvent(ctx, event.New(event.EventWorkflowStarted).
		WithTenant(wf.TenantID).
		WithWorkflow(def.Name(), wf.RunID))

	for i, step := range def.Steps() {
		if err := ctx.Err(); err != nil {
			return e.handleFailure(ctx, def, wf, step.ID(), err, wfSpan, startTime)
		}

		wf.StepIndex = i

		output, err := e.executeStep(ctx, wf, step, i, input)
		if err != nil {
			return e.handleFailure(ctx, def, wf, step.ID(), err, wfSpan, startTime)
		}
		input = output
	}

	duration := time.Since(startTime)
	e.metrics.WorkflowCompleted(def.Name(), duration)
	e.publishEvent(ctx, event.New(event.EventWorkflowCompleted).
		WithTenant(wf.TenantID).
		WithWorkflow(def.Name(), wf.RunID))

	return &Result{
		RunID:    wf.RunID,
		Workflow: def.Name(),
		Output:   input,
		Duration: duration,
	}, nil
}

// executeStep executes a single step with tracing, metrics, events, and
// circuit breaker protection, and records the completion on the context.
func (e *Engine) executeStep(ctx context.Context, wf *Context, step Step, stepIdx int, input any) (any, error) {
	stepStart := time.Now()

	stepCtx, span := e.tracer.StartStep(ctx, wf.RunID, step.ID(), stepIdx)
	defer span.End()

	e.metrics.StepStarted(wf.Workflow, step.ID())
	e.publishEvent(ctx, event.New(event.EventStepStarted).
		WithTenant(wf.TenantID).
		WithWorkflow(wf.Workflow, wf.RunID).
		WithStep(step.ID()))

	var result *StepResult
	var execErr error
	if e.breaker != nil {
		cb := e.breaker.Get(step.ID())
		execErr = cb.Execute(stepCtx, func() error {
			var err error
			result, err = e.executeWithTimeout(stepCtx, wf, step, input)
			return err
		})
	} else {
		result, execErr = e.executeWithTimeout(stepCtx, wf, step, input)
	}

	if execErr != nil {
		span.SetError(execErr)
		e.metrics.StepFailed(wf.Workflow, step.ID())
		e.publishEvent(ctx, event.New(event.EventStepFailed).
			WithTenant(wf.TenantID).
			WithWorkflow(wf.Workflow, wf.RunID).
			WithStep(step.ID()).
			WithError(execErr))
		return nil, execErr
	}

	if result == nil {
		result = &StepResult{}
	}
	wf.appendCompleted(CompletedStep{
		ID:               step.ID(),
		Output:           result.Output,
		CompensationData: result.CompensationData,
	})

	e.metrics.StepCompleted(wf.Workflow, step.ID(), time.Since(stepStart))
	e.publishEvent(ctx, event.New(event.EventStepCompleted).
		WithTenant(wf.TenantID).
		WithWorkflow(wf.Workflow, wf.RunID).
		WithStep(step.ID()))

	return result.Output, nil
}

// executeWithTimeout executes a step's forward action bounded by the
// configured step timeout. Zero timeout runs unbounded.
func (e *Engine) executeWithTimeout(ctx context.Context, wf *Context, step Step, input any) (*StepResult, error) {
	if e.config.StepTimeout <= 0 {
		return runStep(ctx, wf, step, input)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.StepTimeout)
	defer cancel()

	type stepOutcome struct {
		result *StepResult
		err    error
	}
	done := make(chan stepOutcome, 1)
	go func() {
		result, err := runStep(timeoutCtx, wf, step, input)
		done <- stepOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timeoutCtx.Done():
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", ErrStepTimeout, step.ID())
		}
		return nil, timeoutCtx.Err()
	}
}

// handleFailure compensates the completed steps and wraps the forward error.
func (e *Engine) handleFailure(ctx context.Context, def *Definition, wf *Context, failedStepID string, execErr error, wfSpan tracing.Span, startTime time.Time) (*Result, error) {
	wfSpan.SetError(execErr)
	e.metrics.WorkflowFailed(def.Name(), failedStepID)

	compErrors := e.compensate(ctx, def, wf)

	wfErr := &WorkflowError{
		Workflow:           def.Name(),
		RunID:              wf.RunID,
		StepID:             failedStepID,
		Err:                execErr,
		CompensationErrors: compErrors,
	}

	if len(wf.CompletedSteps()) > 0 {
		e.metrics.WorkflowCompensated(def.Name())
		e.publishEvent(ctx, event.New(event.EventWorkflowCompensated).
			WithTenant(wf.TenantID).
			WithWorkflow(def.Name(), wf.RunID).
			WithData("fully_compensated", wfErr.FullyCompensated()))
	}

	e.publishEvent(ctx, event.New(event.EventWorkflowFailed).
		WithTenant(wf.TenantID).
		WithWorkflow(def.Name(), wf.RunID).
		WithStep(failedStepID).
		WithError(execErr))

	return nil, wfErr
}

// compensate runs the compensation of every completed step that declares one,
// in reverse completion order. Each compensation gets exactly one attempt; a
// failure is logged, counted, and alerted, then rollback continues with the
// next step. The returned slice holds the failures in attempt order.
func (e *Engine) compensate(ctx context.Context, def *Definition, wf *Context) []*CompensationError {
	steps := make(map[string]Step, def.Len())
	for _, s := range def.Steps() {
		steps[s.ID()] = s
	}

	var compErrors []*CompensationError
	completed := wf.CompletedSteps()
	for i := len(completed) - 1; i >= 0; i-- {
		cs := completed[i]
		step, ok := steps[cs.ID]
		if !ok || !step.Compensable() {
			continue
		}

		if err := e.compensateWithTimeout(ctx, wf, step, cs.CompensationData); err != nil {
			compErrors = append(compErrors, &CompensationError{StepID: cs.ID, Err: err})

			e.logger.Printf("[Engine] workflow %s run %s: compensation for step %s failed: %v",
				wf.Workflow, wf.RunID, cs.ID, err)
			e.metrics.CompensationFailed(wf.Workflow, cs.ID)
			e.publishEvent(ctx, event.New(event.EventAlertCritical).
				WithTenant(wf.TenantID).
				WithWorkflow(wf.Workflow, wf.RunID).
				WithStep(cs.ID).
				WithData("message", fmt.Sprintf("compensation failed for step %s, manual intervention may be required", cs.ID)).
				WithError(err))
		}
	}

	return compErrors
}

// compensateWithTimeout runs a single compensation attempt bounded by the
// compensation timeout. The parent context may already be cancelled or past
// its deadline when the forward failure was a timeout, so compensation runs
// against a fresh context: rollback must get its chance even when the run
// that needs it died of a deadline.
func (e *Engine) compensateWithTimeout(ctx context.Context, wf *Context, step Step, data any) error {
	compCtx := context.WithoutCancel(ctx)

	timeout := e.config.CompensationTimeout
	if timeout <= 0 {
		timeout = e.config.StepTimeout
	}
	if timeout <= 0 {
		return runCompensation(compCtx, wf, step, data)
	}

	timeoutCtx, cancel := context.WithTimeout(compCtx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runCompensation(timeoutCtx, wf, step, data)
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: compensation for %s", ErrStepTimeout, step.ID())
		}
		return timeoutCtx.Err()
	}
}

// runStep invokes a step's forward action, containing panics. Steps run in
// engine-spawned goroutines, so an uncontained panic would take the process
// down instead of triggering rollback.
func runStep(ctx context.Context, wf *Context, step Step, input any) (result *StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: step %s: %v", ErrStepPanic, step.ID(), r)
		}
	}()
	return step.Execute(ctx, wf, input)
}

// runCompensation invokes a step's compensation, containing panics. A
// panicking compensation must not prevent the remaining compensations from
// running.
func runCompensation(ctx context.Context, wf *Context, step Step, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: compensation for %s: %v", ErrStepPanic, step.ID(), r)
		}
	}()
	return step.Compensate(ctx, wf, data)
}

// publishEvent publishes an event to the event bus.
func (e *Engine) publishEvent(ctx context.Context, ev event.Event) {
	if e.events != nil {
		e.events.Publish(ctx, ev)
	}
}
