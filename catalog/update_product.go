package catalog

import (
	"context"
	"errors"
	"fmt"

	"shopflow"
	"shopflow/event"
	"shopflow/store"
)

// updateProductState is the typed accumulator threaded through the
// update-product steps.
type updateProductState struct {
	input UpdateProductInput

	// snapshot of the row and links before any write, for compensation.
	before      *store.Product
	beforeLinks []string

	// after is the row as written.
	after *store.Product
}

// UpdateProduct runs the update-product workflow. Only fields present in the
// input are changed; an absent field never overwrites stored data.
func (s *Service) UpdateProduct(ctx context.Context, tenantID string, input UpdateProductInput) (*store.Product, error) {
	var updated *store.Product
	err := s.store.WithTenant(ctx, tenantID, func(ctx context.Context, tx store.Tx) error {
		wf := shopflow.NewContext(tenantID, tx)
		res, err := s.engine.Run(ctx, s.updateProductWorkflow(), wf, input)
		if err != nil {
			return err
		}
		state := res.Output.(*updateProductState)
		updated = state.after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) updateProductWorkflow() *shopflow.Definition {
	return shopflow.NewWorkflow(WorkflowUpdateProduct).
		Step(s.validateUpdateStep()).
		Step(s.snapshotProductStep()).
		Step(s.applyUpdateStep()).
		Step(s.syncCollectionsStep()).
		Step(s.emitProductUpdatedStep()).
		MustBuild()
}

func (s *Service) validateUpdateStep() shopflow.Step {
	return shopflow.NewFuncStep("validate", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		in, ok := input.(UpdateProductInput)
		if !ok {
			return nil, validationError("input", fmt.Sprintf("expected UpdateProductInput, got %T", input))
		}
		if in.ProductID == "" {
			return nil, validationError("product_id", "is required")
		}
		if in.Name != nil && *in.Name == "" {
			return nil, validationError("name", "must not be empty")
		}
		if in.Price != nil && *in.Price < 0 {
			return nil, validationError("price", "must not be negative")
		}
		if in.Quantity != nil && *in.Quantity < 0 {
			return nil, validationError("quantity", "must not be negative")
		}
		if in.Status != nil && *in.Status != store.ProductStatusActive && *in.Status != store.ProductStatusArchived {
			return nil, validationError("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		return &shopflow.StepResult{Output: &updateProductState{input: in}}, nil
	})
}

// snapshotProductStep loads the current row and collection links before any
// write. Read-only, so no compensation.
func (s *Service) snapshotProductStep() shopflow.Step {
	return shopflow.NewFuncStep("snapshot", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateProductState)

		product, err := wf.Tx.GetProduct(ctx, state.input.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", shopflow.ErrNotFound, state.input.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("load product: %w", err)
		}

		links, err := wf.Tx.CollectionLinks(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("load collection links: %w", err)
		}

		state.before = product
		state.beforeLinks = links
		return &shopflow.StepResult{Output: state}, nil
	})
}

// applyUpdateStep writes the partial update. Compensation restores the
// snapshot row.
func (s *Service) applyUpdateStep() shopflow.Step {
	return shopflow.NewFuncStep("apply-update", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateProductState)
		in := state.input

		updated := *state.before
		if in.Name != nil {
			updated.Name = *in.Name
		}
		if in.Slug != nil {
			updated.Slug = *in.Slug
		}
		if in.Description != nil {
			updated.Description = *in.Description
		}
		if in.Price != nil {
			updated.Price = *in.Price
		}
		if in.Status != nil {
			updated.Status = *in.Status
		}
		if in.Quantity != nil {
			updated.Quantity = *in.Quantity
		}

		if err := wf.Tx.UpdateProduct(ctx, &updated); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}

		state.after = &updated
		snapshot := *state.before
		return &shopflow.StepResult{Output: state, CompensationData: &snapshot}, nil
	}).WithCompensation(func(ctx context.Context, wf *shopflow.Context, data any) error {
		return wf.Tx.UpdateProduct(ctx, data.(*store.Product))
	})
}

// syncCollectionsData is the compensation payload of sync-collections.
type syncCollectionsData struct {
	productID string
	oldLinks  []string
}

// syncCollectionsStep replaces the product's collection links when the input
// carries a CollectionIDs slice. Replace-all: delete then reinsert.
func (s *Service) syncCollectionsStep() shopflow.Step {
	return shopflow.NewFuncStep("sync-collections", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateProductState)
		if state.input.CollectionIDs == nil {
			return &shopflow.StepResult{Output: state}, nil
		}

		if err := wf.Tx.DeleteCollectionLinks(ctx, state.before.ID); err != nil {
			return nil, fmt.Errorf("clear collection links: %w", err)
		}
		for _, cid := range state.input.CollectionIDs {
			if err := wf.Tx.LinkCollection(ctx, state.before.ID, cid); err != nil {
				return nil, fmt.Errorf("link collection %s: %w", cid, err)
			}
		}

		return &shopflow.StepResult{
			Output:           state,
			CompensationData: syncCollectionsData{productID: state.before.ID, oldLinks: state.beforeLinks},
		}, nil
	}).WithCompensation(func(ctx context.Context, wf *shopflow.Context, data any) error {
		// Nil data means the step was a no-op: nothing to restore.
		sd, ok := data.(syncCollectionsData)
		if !ok {
			return nil
		}
		if err := wf.Tx.DeleteCollectionLinks(ctx, sd.productID); err != nil {
			return err
		}
		var errs []error
		for _, cid := range sd.oldLinks {
			if err := wf.Tx.LinkCollection(ctx, sd.productID, cid); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func (s *Service) emitProductUpdatedStep() shopflow.Step {
	return shopflow.NewFuncStep("emit-event", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*updateProductState)

		s.audit.Record(ctx, wf.Tx, &store.AuditEntry{
			Action:     "product.update",
			EntityType: "product",
			EntityID:   state.after.ID,
			OldValues: map[string]any{
				"name":   state.before.Name,
				"slug":   state.before.Slug,
				"price":  state.before.Price,
				"status": state.before.Status,
			},
			NewValues: map[string]any{
				"name":   state.after.Name,
				"slug":   state.after.Slug,
				"price":  state.after.Price,
				"status": state.after.Status,
			},
		})

		if err := s.events.Publish(ctx, event.New(event.EventProductUpdated).
			WithTenant(wf.TenantID).
			WithWorkflow(wf.Workflow, wf.RunID).
			WithEntity(state.after.ID).
			WithData("name", state.after.Name)); err != nil {
			s.logger.Printf("[Catalog] publish product.updated for %s failed: %v", state.after.ID, err)
		}

		return &shopflow.StepResult{Output: state}, nil
	})
}
