package shopflow

import (
	"context"
	"errors"
	"testing"
)

func noopStep(id string) Step {
	return NewFuncStep(id, func(ctx context.Context, wf *Context, input any) (*StepResult, error) {
		return &StepResult{Output: input}, nil
	})
}

func TestBuilder_Build(t *testing.T) {
	def, err := NewWorkflow("test").
		Steps(noopStep("a"), noopStep("b")).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if def.Name() != "test" || def.Len() != 2 {
		t.Errorf("unexpected definition: name=%q len=%d", def.Name(), def.Len())
	}

	ids := def.StepIDs()
	if ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected step order: %v", ids)
	}
}

func TestBuilder_Empty(t *testing.T) {
	if _, err := NewWorkflow("test").Build(); !errors.Is(err, ErrEmptyWorkflow) {
		t.Errorf("expected ErrEmptyWorkflow, got %v", err)
	}
	if _, err := NewWorkflow("").Step(noopStep("a")).Build(); !errors.Is(err, ErrEmptyWorkflow) {
		t.Errorf("expected ErrEmptyWorkflow for empty name, got %v", err)
	}
}

func TestBuilder_DuplicateStepID(t *testing.T) {
	_, err := NewWorkflow("test").
		Step(noopStep("a")).
		Step(noopStep("a")).
		Build()
	if !errors.Is(err, ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got %v", err)
	}
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustBuild to panic on empty workflow")
		}
	}()
	NewWorkflow("test").MustBuild()
}

func TestContext_CompletedOutputAs(t *testing.T) {
	wf := NewContext("tenant-1", nil)
	wf.appendCompleted(CompletedStep{ID: "a", Output: 42})

	v, err := CompletedOutputAs[int](wf, "a")
	if err != nil || v != 42 {
		t.Errorf("expected 42, got %v (err=%v)", v, err)
	}

	if _, err := CompletedOutputAs[string](wf, "a"); !errors.Is(err, ErrOutputTypeMismatch) {
		t.Errorf("expected ErrOutputTypeMismatch, got %v", err)
	}
	if _, err := CompletedOutputAs[int](wf, "missing"); !errors.Is(err, ErrStepNotCompleted) {
		t.Errorf("expected ErrStepNotCompleted, got %v", err)
	}
}

func TestContext_Metadata(t *testing.T) {
	wf := NewContext("tenant-1", nil)
	wf.SetMetadata("source", "webhook")

	if v, ok := wf.GetMetadata("source"); !ok || v != "webhook" {
		t.Errorf("expected webhook, got %q (ok=%v)", v, ok)
	}
	if _, ok := wf.GetMetadata("missing"); ok {
		t.Error("expected missing key to report not ok")
	}
}
