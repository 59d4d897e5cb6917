package shopflow

import "fmt"

// Definition is an ordered sequence of steps sharing one workflow context and
// one logical input→output chain: step n's output is step n+1's input.
type Definition struct {
	name  string
	steps []Step
}

// Builder provides a fluent API for declaring workflow definitions.
type Builder struct {
	def    *Definition
	errors []error
}

// NewWorkflow creates a builder for a workflow with the given name
// (e.g. "product.create").
func NewWorkflow(name string) *Builder {
	return &Builder{
		def: &Definition{
			name:  name,
			steps: make([]Step, 0),
		},
	}
}

// Step appends a step to the workflow.
func (b *Builder) Step(step Step) *Builder {
	if step == nil || step.ID() == "" {
		b.errors = append(b.errors, fmt.Errorf("%w: step must have an id", ErrEmptyWorkflow))
		return b
	}
	for _, existing := range b.def.steps {
		if existing.ID() == step.ID() {
			b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrDuplicateStepID, step.ID()))
			return b
		}
	}
	b.def.steps = append(b.def.steps, step)
	return b
}

// Steps appends multiple steps in order.
func (b *Builder) Steps(steps ...Step) *Builder {
	for _, s := range steps {
		b.Step(s)
	}
	return b
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if b.def.name == "" {
		return nil, fmt.Errorf("%w: workflow name cannot be empty", ErrEmptyWorkflow)
	}
	if len(b.def.steps) == 0 {
		return nil, ErrEmptyWorkflow
	}
	return b.def, nil
}

// MustBuild validates and returns the definition, panicking on error. Use
// only for fixed pipelines declared at startup.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the workflow name.
func (d *Definition) Name() string {
	return d.name
}

// Steps returns the ordered steps.
func (d *Definition) Steps() []Step {
	out := make([]Step, len(d.steps))
	copy(out, d.steps)
	return out
}

// Len returns the number of steps.
func (d *Definition) Len() int {
	return len(d.steps)
}

// StepIDs returns the ordered step IDs.
func (d *Definition) StepIDs() []string {
	ids := make([]string, len(d.steps))
	for i, s := range d.steps {
		ids[i] = s.ID()
	}
	return ids
}
