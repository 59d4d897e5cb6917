package catalog

import (
	"context"
	"errors"
	"fmt"

	"shopflow"
	"shopflow/event"
	"shopflow/store"
)

// deleteProductState is the typed accumulator threaded through the
// delete-product steps.
type deleteProductState struct {
	product *store.Product
}

// DeleteProduct runs the delete-product workflow. Deletion is blocked when
// any order references the product; callers should archive instead. The
// workflow carries no compensations: deletion is terminal.
func (s *Service) DeleteProduct(ctx context.Context, tenantID, productID string) error {
	return s.store.WithTenant(ctx, tenantID, func(ctx context.Context, tx store.Tx) error {
		wf := shopflow.NewContext(tenantID, tx)
		_, err := s.engine.Run(ctx, s.deleteProductWorkflow(), wf, productID)
		return err
	})
}

func (s *Service) deleteProductWorkflow() *shopflow.Definition {
	return shopflow.NewWorkflow(WorkflowDeleteProduct).
		Step(s.validateDeleteStep()).
		Step(s.deleteLinksStep()).
		Step(s.deleteVariantsStep()).
		Step(s.deleteProductStep()).
		Step(s.emitProductDeletedStep()).
		MustBuild()
}

// validateDeleteStep loads the product and blocks the deletion when orders
// reference it.
func (s *Service) validateDeleteStep() shopflow.Step {
	return shopflow.NewFuncStep("validate", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		productID, ok := input.(string)
		if !ok || productID == "" {
			return nil, validationError("product_id", "is required")
		}

		product, err := wf.Tx.GetProduct(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", shopflow.ErrNotFound, productID)
		}
		if err != nil {
			return nil, fmt.Errorf("load product: %w", err)
		}

		refs, err := wf.Tx.CountOrdersReferencingProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("count order references: %w", err)
		}
		if refs > 0 {
			return nil, fmt.Errorf("%w: product %s is referenced by %d order(s), archive it instead of deleting",
				shopflow.ErrConflict, productID, refs)
		}

		return &shopflow.StepResult{Output: &deleteProductState{product: product}}, nil
	})
}

func (s *Service) deleteLinksStep() shopflow.Step {
	return shopflow.NewFuncStep("delete-links", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*deleteProductState)
		if err := wf.Tx.DeleteCollectionLinks(ctx, state.product.ID); err != nil {
			return nil, fmt.Errorf("delete collection links: %w", err)
		}
		return &shopflow.StepResult{Output: state}, nil
	})
}

func (s *Service) deleteVariantsStep() shopflow.Step {
	return shopflow.NewFuncStep("delete-variants", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*deleteProductState)
		if err := wf.Tx.DeleteVariantsByProduct(ctx, state.product.ID); err != nil {
			return nil, fmt.Errorf("delete variants: %w", err)
		}
		return &shopflow.StepResult{Output: state}, nil
	})
}

func (s *Service) deleteProductStep() shopflow.Step {
	return shopflow.NewFuncStep("delete-product", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*deleteProductState)
		if err := wf.Tx.DeleteProduct(ctx, state.product.ID); err != nil {
			return nil, fmt.Errorf("delete product: %w", err)
		}
		return &shopflow.StepResult{Output: state}, nil
	})
}

func (s *Service) emitProductDeletedStep() shopflow.Step {
	return shopflow.NewFuncStep("emit-event", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*deleteProductState)

		s.audit.Record(ctx, wf.Tx, &store.AuditEntry{
			Action:     "product.delete",
			EntityType: "product",
			EntityID:   state.product.ID,
			OldValues: map[string]any{
				"name": state.product.Name,
				"slug": state.product.Slug,
			},
		})

		if err := s.events.Publish(ctx, event.New(event.EventProductDeleted).
			WithTenant(wf.TenantID).
			WithWorkflow(wf.Workflow, wf.RunID).
			WithEntity(state.product.ID).
			WithData("name", state.product.Name)); err != nil {
			s.logger.Printf("[Catalog] publish product.deleted for %s failed: %v", state.product.ID, err)
		}

		return &shopflow.StepResult{Output: state}, nil
	})
}
