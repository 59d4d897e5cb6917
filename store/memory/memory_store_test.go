package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopflow/store"
)

func withTenant(t *testing.T, st *MemoryStore, tenant string, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	if err := st.WithTenant(context.Background(), tenant, fn); err != nil {
		t.Fatalf("store access failed: %v", err)
	}
}

// ============================================================================
// Tenant Isolation Tests
// ============================================================================

func TestMemoryStore_TenantIsolation(t *testing.T) {
	st := NewMemoryStore()

	withTenant(t, st, "tenant-a", func(ctx context.Context, tx store.Tx) error {
		return tx.CreateProduct(ctx, &store.Product{ID: "p1", Name: "Mug", Slug: "mug"})
	})

	// Another tenant cannot see the row.
	withTenant(t, st, "tenant-b", func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, "p1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("cross-tenant read must miss, got %v", err)
		}
		if _, err := tx.GetProductBySlug(ctx, "mug"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("cross-tenant slug read must miss, got %v", err)
		}
		// And the slug is free for this tenant.
		return tx.CreateProduct(ctx, &store.Product{ID: "p2", Name: "Mug", Slug: "mug"})
	})

	// The owner still sees its own row.
	withTenant(t, st, "tenant-a", func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		if err != nil {
			return err
		}
		if p.Name != "Mug" {
			t.Errorf("unexpected product: %+v", p)
		}
		return nil
	})
}

func TestMemoryStore_DuplicateSlugSameTenant(t *testing.T) {
	st := NewMemoryStore()
	withTenant(t, st, "tenant-a", func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateProduct(ctx, &store.Product{ID: "p1", Slug: "mug"}); err != nil {
			return err
		}
		err := tx.CreateProduct(ctx, &store.Product{ID: "p2", Slug: "mug"})
		if !errors.Is(err, store.ErrDuplicateSlug) {
			t.Errorf("expected ErrDuplicateSlug, got %v", err)
		}
		return nil
	})
}

// ============================================================================
// Conditional Adjust Tests
// ============================================================================

func TestMemoryStore_AdjustVariantQuantity(t *testing.T) {
	st := NewMemoryStore()
	withTenant(t, st, "tenant-a", func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateVariant(ctx, &store.Variant{ID: "v1", ProductID: "p1", Quantity: 10}); err != nil {
			return err
		}

		if err := tx.AdjustVariantQuantity(ctx, "v1", 10, 7); err != nil {
			t.Errorf("adjust with matching from: %v", err)
		}

		// Stale from value loses.
		if err := tx.AdjustVariantQuantity(ctx, "v1", 10, 4); !errors.Is(err, store.ErrConcurrentUpdate) {
			t.Errorf("expected ErrConcurrentUpdate, got %v", err)
		}

		// Missing row is not a lost race.
		if err := tx.AdjustVariantQuantity(ctx, "ghost", 1, 0); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		v, err := tx.GetVariant(ctx, "v1")
		if err != nil {
			return err
		}
		if v.Quantity != 7 {
			t.Errorf("expected quantity 7, got %d", v.Quantity)
		}
		return nil
	})
}

// ============================================================================
// Idempotency Tests
// ============================================================================

func TestMemoryStore_Idempotency(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	exists, _, err := st.CheckIdempotency(ctx, "key-1")
	if err != nil || exists {
		t.Fatalf("expected miss, got exists=%v err=%v", exists, err)
	}

	if err := st.MarkIdempotency(ctx, "key-1", []byte(`{"ok":true}`), time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}
	exists, result, err := st.CheckIdempotency(ctx, "key-1")
	if err != nil || !exists {
		t.Fatalf("expected hit, got exists=%v err=%v", exists, err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("unexpected cached result %q", result)
	}
}

func TestMemoryStore_IdempotencyExpiry(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.MarkIdempotency(ctx, "key-1", []byte("x"), -time.Second); err != nil {
		t.Fatalf("mark: %v", err)
	}
	exists, _, err := st.CheckIdempotency(ctx, "key-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if exists {
		t.Error("expired record must read as a miss")
	}
}
