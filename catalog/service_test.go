package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"shopflow"
	"shopflow/event"
	"shopflow/store"
	"shopflow/store/memory"
)

const testTenant = "tenant-1"

func newTestService(st *memory.MemoryStore, opts ...ServiceOption) *Service {
	return NewService(shopflow.NewEngine(), st, opts...)
}

func inTenant(t *testing.T, st *memory.MemoryStore, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	if err := st.WithTenant(context.Background(), testTenant, fn); err != nil {
		t.Fatalf("store access failed: %v", err)
	}
}

// ============================================================================
// Slugify Tests
// ============================================================================

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Blue T-Shirt", "blue-t-shirt"},
		{"  Fancy   Mug!  ", "fancy-mug"},
		{"100% Cotton", "100-cotton"},
		{"---", ""},
		{"Déjà Vu", "déjà-vu"},
	}
	for _, tc := range tests {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// ============================================================================
// Create Product Tests
// ============================================================================

func TestCreateProduct(t *testing.T) {
	st := memory.NewMemoryStore()
	bus := event.NewMemoryBus()
	var published []event.Event
	bus.SubscribeAll(func(ctx context.Context, e event.Event) error {
		published = append(published, e)
		return nil
	})
	svc := newTestService(st, WithEventBus(bus))

	product, err := svc.CreateProduct(context.Background(), testTenant, CreateProductInput{
		Name:          "Blue T-Shirt",
		Description:   "soft cotton",
		Price:         24.99,
		Quantity:      10,
		TrackQuantity: true,
		Variants: []VariantInput{
			{Title: "Small", SKU: "TS-S", Price: 24.99, Quantity: 4},
			{Title: "Large", SKU: "TS-L", Price: 26.99, Quantity: 6},
		},
		CollectionIDs: []string{"col-summer"},
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if product.ID == "" {
		t.Fatal("expected product ID to be assigned")
	}
	if product.Slug != "blue-t-shirt" {
		t.Errorf("expected generated slug, got %q", product.Slug)
	}
	if product.Status != store.ProductStatusActive {
		t.Errorf("expected active status, got %q", product.Status)
	}

	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		variants, err := tx.VariantsByProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		if len(variants) != 2 {
			t.Errorf("expected 2 variants, got %d", len(variants))
		}
		links, err := tx.CollectionLinks(ctx, product.ID)
		if err != nil {
			return err
		}
		if len(links) != 1 || links[0] != "col-summer" {
			t.Errorf("expected link to col-summer, got %v", links)
		}
		return nil
	})

	if len(published) != 1 || published[0].Type != event.EventProductCreated {
		t.Errorf("expected one product.created event, got %v", published)
	}
	audits := st.AuditEntries(testTenant)
	if len(audits) != 1 || audits[0].Action != "product.create" {
		t.Errorf("expected one product.create audit entry, got %d", len(audits))
	}
}

func TestCreateProduct_SlugCollisionGetsSuffix(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)
	ctx := context.Background()

	first, err := svc.CreateProduct(ctx, testTenant, CreateProductInput{Name: "Mug", Price: 5})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := svc.CreateProduct(ctx, testTenant, CreateProductInput{Name: "Mug", Price: 5})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if first.Slug != "mug" {
		t.Errorf("expected first slug %q, got %q", "mug", first.Slug)
	}
	if second.Slug == first.Slug {
		t.Error("expected collision to be resolved with a suffix")
	}
	if !strings.HasPrefix(second.Slug, "mug-") {
		t.Errorf("expected suffixed slug, got %q", second.Slug)
	}
}

func TestCreateProduct_ValidationBeforeAnyWrite(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)

	tests := []CreateProductInput{
		{Name: "", Price: 5},
		{Name: "Mug", Price: -1},
		{Name: "Mug", Price: 5, Quantity: -1},
		{Name: "Mug", Price: 5, Variants: []VariantInput{{Title: ""}}},
		{Name: "Mug", Price: 5, Variants: []VariantInput{{Title: "A", Price: -2}}},
	}
	for i, in := range tests {
		_, err := svc.CreateProduct(context.Background(), testTenant, in)
		if !errors.Is(err, shopflow.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}

	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProductBySlug(ctx, "mug"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected no product row after failed validation, got %v", err)
		}
		return nil
	})
}

// A failure in a late step must unwind everything the earlier steps wrote:
// after the run the product, its variants, and its collection links are all
// gone. The duplicate collection ID makes link-collections fail on its
// second link.
func TestCreateProduct_LateFailureLeavesNothing(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)

	_, err := svc.CreateProduct(context.Background(), testTenant, CreateProductInput{
		Name:  "Poster",
		Price: 12,
		Variants: []VariantInput{
			{Title: "A2", SKU: "PO-A2", Price: 12, Quantity: 3},
		},
		CollectionIDs: []string{"col-art", "col-art"},
	})
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected the forward cause to surface, got %v", err)
	}
	var wfErr *shopflow.WorkflowError
	if !errors.As(err, &wfErr) {
		t.Fatalf("expected a WorkflowError, got %T", err)
	}
	if !wfErr.FullyCompensated() {
		t.Errorf("expected full compensation, got %v", wfErr.CompensationErrors)
	}

	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProductBySlug(ctx, "poster"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("product row must be gone, got %v", err)
		}
		return nil
	})
	if got := st.VariantCount(testTenant); got != 0 {
		t.Errorf("expected 0 variant rows, got %d", got)
	}
	if got := st.LinkCount(testTenant); got != 0 {
		t.Errorf("expected 0 collection links, got %d", got)
	}
}

// ============================================================================
// Update Product Tests
// ============================================================================

func seedProduct(t *testing.T, svc *Service, name string, collections ...string) *store.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), testTenant, CreateProductInput{
		Name:          name,
		Description:   "original description",
		Price:         10,
		CollectionIDs: collections,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestUpdateProduct_PartialUpdateKeepsOtherFields(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)
	p := seedProduct(t, svc, "Lamp", "col-home")

	newPrice := 14.5
	updated, err := svc.UpdateProduct(context.Background(), testTenant, UpdateProductInput{
		ProductID: p.ID,
		Price:     &newPrice,
	})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}

	if updated.Price != 14.5 {
		t.Errorf("expected price 14.5, got %v", updated.Price)
	}
	if updated.Name != "Lamp" || updated.Slug != "lamp" || updated.Description != "original description" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		links, err := tx.CollectionLinks(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(links) != 1 || links[0] != "col-home" {
			t.Errorf("nil CollectionIDs must leave links alone, got %v", links)
		}
		return nil
	})
}

func TestUpdateProduct_ReplacesCollections(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)
	p := seedProduct(t, svc, "Lamp", "col-home", "col-sale")

	_, err := svc.UpdateProduct(context.Background(), testTenant, UpdateProductInput{
		ProductID:     p.ID,
		CollectionIDs: []string{"col-new"},
	})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		links, err := tx.CollectionLinks(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(links) != 1 || links[0] != "col-new" {
			t.Errorf("expected links replaced with [col-new], got %v", links)
		}
		return nil
	})
}

func TestUpdateProduct_CancelledAfterNoopSyncRollsBack(t *testing.T) {
	// With nil CollectionIDs the sync step completes as a no-op, recording
	// nothing to undo. A rollback starting right after it must skip that
	// step cleanly and still restore the product snapshot.
	st := memory.NewMemoryStore()
	bus := event.NewMemoryBus()
	engine := shopflow.NewEngine(shopflow.WithEventBus(bus))
	svc := NewService(engine, st)
	p := seedProduct(t, svc, "Lamp", "col-home")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(event.EventStepCompleted, func(ctx context.Context, e event.Event) error {
		if e.StepID == "sync-collections" {
			cancel()
		}
		return nil
	})

	name := "Chandelier"
	_, err := svc.UpdateProduct(ctx, testTenant, UpdateProductInput{
		ProductID: p.ID,
		Name:      &name,
	})
	if err == nil {
		t.Fatal("expected the cancelled run to fail")
	}
	var wfErr *shopflow.WorkflowError
	if !errors.As(err, &wfErr) {
		t.Fatalf("expected *WorkflowError, got %v", err)
	}
	if !wfErr.FullyCompensated() {
		t.Errorf("expected full rollback, got compensation errors: %v", wfErr.CompensationErrors)
	}

	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		if got.Name != "Lamp" {
			t.Errorf("expected name restored to Lamp, got %q", got.Name)
		}
		links, err := tx.CollectionLinks(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(links) != 1 || links[0] != "col-home" {
			t.Errorf("expected links untouched, got %v", links)
		}
		return nil
	})
}

func TestUpdateProduct_InvalidStatus(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)
	p := seedProduct(t, svc, "Lamp")

	bogus := "discontinued"
	_, err := svc.UpdateProduct(context.Background(), testTenant, UpdateProductInput{
		ProductID: p.ID,
		Status:    &bogus,
	})
	if !errors.Is(err, shopflow.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)

	name := "Ghost"
	_, err := svc.UpdateProduct(context.Background(), testTenant, UpdateProductInput{
		ProductID: "missing",
		Name:      &name,
	})
	if !errors.Is(err, shopflow.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================================
// Event Publish Failure Tests
// ============================================================================

// failingBus rejects every publish.
type failingBus struct{}

func (failingBus) Publish(ctx context.Context, e event.Event) error { return errors.New("bus down") }
func (failingBus) Subscribe(t event.Type, h event.Handler) error    { return nil }
func (failingBus) SubscribeAll(h event.Handler) error               { return nil }

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestCreateProduct_PublishFailureLoggedNotFatal(t *testing.T) {
	st := memory.NewMemoryStore()
	logger := &captureLogger{}
	svc := newTestService(st, WithEventBus(failingBus{}), WithLogger(logger))

	p, err := svc.CreateProduct(context.Background(), testTenant, CreateProductInput{
		Name:  "Lamp",
		Price: 20,
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if p == nil {
		t.Fatal("expected a product despite the publish failure")
	}
	if len(logger.lines) != 1 || !strings.Contains(logger.lines[0], "bus down") {
		t.Errorf("expected one logged publish failure, got %v", logger.lines)
	}
}

// ============================================================================
// Delete Product Tests
// ============================================================================

func TestDeleteProduct(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)
	p, err := svc.CreateProduct(context.Background(), testTenant, CreateProductInput{
		Name:  "Sticker",
		Price: 2,
		Variants: []VariantInput{
			{Title: "Glossy", SKU: "ST-G", Price: 2, Quantity: 50},
		},
		CollectionIDs: []string{"col-misc"},
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	if err := svc.DeleteProduct(context.Background(), testTenant, p.ID); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}

	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected product gone, got %v", err)
		}
		return nil
	})
	if got := st.VariantCount(testTenant); got != 0 {
		t.Errorf("expected variants gone, got %d", got)
	}
	if got := st.LinkCount(testTenant); got != 0 {
		t.Errorf("expected links gone, got %d", got)
	}
}

func TestDeleteProduct_BlockedByOrderReferences(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)
	p := seedProduct(t, svc, "Chair")

	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateOrder(ctx, &store.Order{
			ID:     "order-1",
			Status: "pending",
			Items: []store.OrderItem{
				{OrderID: "order-1", ProductID: p.ID, ProductName: "Chair", Quantity: 1},
			},
		})
	})

	err := svc.DeleteProduct(context.Background(), testTenant, p.ID)
	if !errors.Is(err, shopflow.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The guard fires before any delete.
	inTenant(t, st, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, p.ID); err != nil {
			t.Errorf("product must survive a blocked delete: %v", err)
		}
		return nil
	})
}

func TestDeleteProduct_NotFound(t *testing.T) {
	st := memory.NewMemoryStore()
	svc := newTestService(st)

	err := svc.DeleteProduct(context.Background(), testTenant, "missing")
	if !errors.Is(err, shopflow.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
