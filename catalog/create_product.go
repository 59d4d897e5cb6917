package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"shopflow"
	"shopflow/event"
	"shopflow/store"
)

// createProductState is the typed accumulator threaded through the
// create-product steps.
type createProductState struct {
	input    CreateProductInput
	product  *store.Product
	variants []*store.Variant
}

// CreateProduct runs the create-product workflow. On any step failure the
// rows created so far are deleted and the forward error is returned; the
// caller observes either a fully created product or nothing.
func (s *Service) CreateProduct(ctx context.Context, tenantID string, input CreateProductInput) (*store.Product, error) {
	var created *store.Product
	err := s.store.WithTenant(ctx, tenantID, func(ctx context.Context, tx store.Tx) error {
		wf := shopflow.NewContext(tenantID, tx)
		res, err := s.engine.Run(ctx, s.createProductWorkflow(), wf, input)
		if err != nil {
			return err
		}
		state := res.Output.(*createProductState)
		created = state.product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) createProductWorkflow() *shopflow.Definition {
	return shopflow.NewWorkflow(WorkflowCreateProduct).
		Step(s.validateCreateStep()).
		Step(s.createProductStep()).
		Step(s.createVariantsStep()).
		Step(s.linkCollectionsStep()).
		Step(s.emitProductCreatedStep()).
		MustBuild()
}

// validateCreateStep rejects bad input before anything is written.
func (s *Service) validateCreateStep() shopflow.Step {
	return shopflow.NewFuncStep("validate", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		in, ok := input.(CreateProductInput)
		if !ok {
			return nil, validationError("input", fmt.Sprintf("expected CreateProductInput, got %T", input))
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, validationError("name", "is required")
		}
		if in.Price < 0 {
			return nil, validationError("price", "must not be negative")
		}
		if in.Quantity < 0 {
			return nil, validationError("quantity", "must not be negative")
		}
		for i, v := range in.Variants {
			if strings.TrimSpace(v.Title) == "" {
				return nil, validationError(fmt.Sprintf("variants[%d].title", i), "is required")
			}
			if v.Price < 0 {
				return nil, validationError(fmt.Sprintf("variants[%d].price", i), "must not be negative")
			}
		}
		if in.Slug == "" {
			in.Slug = slugify(in.Name)
		}
		return &shopflow.StepResult{Output: &createProductState{input: in}}, nil
	})
}

// createProductStep inserts the product row. A slug collision is resolved by
// appending a uniqueness suffix rather than failing.
func (s *Service) createProductStep() shopflow.Step {
	return shopflow.NewFuncStep("create-product", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*createProductState)
		in := state.input

		product := &store.Product{
			ID:             uuid.New().String(),
			Name:           in.Name,
			Slug:           in.Slug,
			Description:    in.Description,
			Price:          in.Price,
			Status:         store.ProductStatusActive,
			Quantity:       in.Quantity,
			TrackQuantity:  in.TrackQuantity,
			AllowBackorder: in.AllowBackorder,
		}

		err := wf.Tx.CreateProduct(ctx, product)
		if errors.Is(err, store.ErrDuplicateSlug) {
			product.Slug = fmt.Sprintf("%s-%s", in.Slug, uniqueSuffix())
			err = wf.Tx.CreateProduct(ctx, product)
		}
		if err != nil {
			return nil, fmt.Errorf("create product: %w", err)
		}

		state.product = product
		return &shopflow.StepResult{Output: state, CompensationData: product.ID}, nil
	}).WithCompensation(func(ctx context.Context, wf *shopflow.Context, data any) error {
		return wf.Tx.DeleteProduct(ctx, data.(string))
	})
}

// createVariantsStep inserts the variant rows.
func (s *Service) createVariantsStep() shopflow.Step {
	return shopflow.NewFuncStep("create-variants", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*createProductState)

		variantIDs := make([]string, 0, len(state.input.Variants))
		for _, vin := range state.input.Variants {
			variant := &store.Variant{
				ID:             uuid.New().String(),
				ProductID:      state.product.ID,
				Title:          vin.Title,
				SKU:            vin.SKU,
				Price:          vin.Price,
				Quantity:       vin.Quantity,
				AllowBackorder: vin.AllowBackorder,
			}
			if err := wf.Tx.CreateVariant(ctx, variant); err != nil {
				// The engine only compensates steps that reported success,
				// so the failed step cleans up its own partial rows.
				for _, id := range variantIDs {
					wf.Tx.DeleteVariant(ctx, id)
				}
				return nil, fmt.Errorf("create variant %q: %w", vin.Title, err)
			}
			variantIDs = append(variantIDs, variant.ID)
			state.variants = append(state.variants, variant)
		}

		return &shopflow.StepResult{Output: state, CompensationData: variantIDs}, nil
	}).WithCompensation(func(ctx context.Context, wf *shopflow.Context, data any) error {
		var errs []error
		for _, id := range data.([]string) {
			if err := wf.Tx.DeleteVariant(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// collectionLinkData is the compensation payload of link-collections.
type collectionLinkData struct {
	productID     string
	collectionIDs []string
}

// linkCollectionsStep attaches the product to its collections.
func (s *Service) linkCollectionsStep() shopflow.Step {
	return shopflow.NewFuncStep("link-collections", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*createProductState)

		linked := make([]string, 0, len(state.input.CollectionIDs))
		for _, cid := range state.input.CollectionIDs {
			if err := wf.Tx.LinkCollection(ctx, state.product.ID, cid); err != nil {
				for _, done := range linked {
					wf.Tx.UnlinkCollection(ctx, state.product.ID, done)
				}
				return nil, fmt.Errorf("link collection %s: %w", cid, err)
			}
			linked = append(linked, cid)
		}

		return &shopflow.StepResult{
			Output:           state,
			CompensationData: collectionLinkData{productID: state.product.ID, collectionIDs: linked},
		}, nil
	}).WithCompensation(func(ctx context.Context, wf *shopflow.Context, data any) error {
		ld := data.(collectionLinkData)
		var errs []error
		for _, cid := range ld.collectionIDs {
			if err := wf.Tx.UnlinkCollection(ctx, ld.productID, cid); err != nil && !errors.Is(err, store.ErrNotFound) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// emitProductCreatedStep records the audit entry and publishes the domain
// event. Event emission is a non-reversible side effect, so this step carries
// no compensation and is last in the pipeline.
func (s *Service) emitProductCreatedStep() shopflow.Step {
	return shopflow.NewFuncStep("emit-event", func(ctx context.Context, wf *shopflow.Context, input any) (*shopflow.StepResult, error) {
		state := input.(*createProductState)

		s.audit.Record(ctx, wf.Tx, &store.AuditEntry{
			Action:     "product.create",
			EntityType: "product",
			EntityID:   state.product.ID,
			NewValues: map[string]any{
				"name":     state.product.Name,
				"slug":     state.product.Slug,
				"price":    state.product.Price,
				"variants": len(state.variants),
			},
		})

		if err := s.events.Publish(ctx, event.New(event.EventProductCreated).
			WithTenant(wf.TenantID).
			WithWorkflow(wf.Workflow, wf.RunID).
			WithEntity(state.product.ID).
			WithData("name", state.product.Name).
			WithData("slug", state.product.Slug)); err != nil {
			s.logger.Printf("[Catalog] publish product.created for %s failed: %v", state.product.ID, err)
		}

		return &shopflow.StepResult{Output: state}, nil
	})
}
