// Package memory provides an in-memory implementation of the store contract
// for tests and examples. Production deployments use the MySQL store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopflow/store"
)

var _ store.Store = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded in-memory store. Conditional quantity
// adjustments are atomic under the store mutex, which gives this
// implementation the same never-go-negative guarantees the MySQL store gets
// from conditional UPDATEs.
type MemoryStore struct {
	mu          sync.Mutex
	products    map[string]*store.Product
	variants    map[string]*store.Variant
	links       []store.CollectionLink
	orders      map[string]*store.Order
	history     []*store.StatusHistoryEntry
	movements   []*store.StockMovement
	audits      []*store.AuditEntry
	idempotency map[string]idempotencyRecord
}

type idempotencyRecord struct {
	result    []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:    make(map[string]*store.Product),
		variants:    make(map[string]*store.Variant),
		orders:      make(map[string]*store.Order),
		idempotency: make(map[string]idempotencyRecord),
	}
}

// WithTenant runs fn with a handle scoped to the tenant.
func (s *MemoryStore) WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, tx store.Tx) error) error {
	return fn(ctx, &memoryTx{store: s, tenant: tenantID})
}

// CheckIdempotency checks if an operation was already executed.
func (s *MemoryStore) CheckIdempotency(ctx context.Context, key string) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idempotency[key]
	if !ok {
		return false, nil, nil
	}
	if time.Now().After(rec.expiresAt) {
		delete(s.idempotency, key)
		return false, nil, nil
	}
	return true, rec.result, nil
}

// MarkIdempotency records an executed operation.
func (s *MemoryStore) MarkIdempotency(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idempotency[key] = idempotencyRecord{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// AuditEntries returns a copy of the audit log for a tenant. Test helper,
// not part of the store contract.
func (s *MemoryStore) AuditEntries(tenantID string) []*store.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*store.AuditEntry
	for _, e := range s.audits {
		if e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// VariantCount returns the number of variant rows for a tenant. Test helper.
func (s *MemoryStore) VariantCount(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, v := range s.variants {
		if v.TenantID == tenantID {
			n++
		}
	}
	return n
}

// LinkCount returns the number of collection links for a tenant. Test helper.
func (s *MemoryStore) LinkCount(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.links {
		if l.TenantID == tenantID {
			n++
		}
	}
	return n
}

// memoryTx is a tenant-scoped handle over the shared store.
type memoryTx struct {
	store  *MemoryStore
	tenant string
}

var _ store.Tx = (*memoryTx)(nil)

// TenantID returns the tenant this handle is scoped to.
func (t *memoryTx) TenantID() string {
	return t.tenant
}

// ============================================================================
// Product Operations
// ============================================================================

func (t *memoryTx) CreateProduct(ctx context.Context, p *store.Product) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, exists := t.store.products[p.ID]; exists {
		return store.ErrAlreadyExists
	}
	for _, existing := range t.store.products {
		if existing.TenantID == t.tenant && existing.Slug == p.Slug {
			return store.ErrDuplicateSlug
		}
	}

	p.TenantID = t.tenant
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	cp := *p
	t.store.products[p.ID] = &cp
	return nil
}

func (t *memoryTx) GetProduct(ctx context.Context, id string) (*store.Product, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	p, ok := t.store.products[id]
	if !ok || p.TenantID != t.tenant {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memoryTx) GetProductBySlug(ctx context.Context, slug string) (*store.Product, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, p := range t.store.products {
		if p.TenantID == t.tenant && p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memoryTx) UpdateProduct(ctx context.Context, p *store.Product) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	existing, ok := t.store.products[p.ID]
	if !ok || existing.TenantID != t.tenant {
		return store.ErrNotFound
	}
	for _, other := range t.store.products {
		if other.TenantID == t.tenant && other.ID != p.ID && other.Slug == p.Slug {
			return store.ErrDuplicateSlug
		}
	}

	p.TenantID = t.tenant
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()

	cp := *p
	t.store.products[p.ID] = &cp
	return nil
}

func (t *memoryTx) DeleteProduct(ctx context.Context, id string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	p, ok := t.store.products[id]
	if !ok || p.TenantID != t.tenant {
		return store.ErrNotFound
	}
	delete(t.store.products, id)
	return nil
}

func (t *memoryTx) ProductsByIDs(ctx context.Context, ids []string) (map[string]*store.Product, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	out := make(map[string]*store.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.store.products[id]; ok && p.TenantID == t.tenant {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (t *memoryTx) AdjustProductQuantity(ctx context.Context, id string, from, to int) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	p, ok := t.store.products[id]
	if !ok || p.TenantID != t.tenant {
		return store.ErrNotFound
	}
	if p.Quantity != from {
		return store.ErrConcurrentUpdate
	}
	p.Quantity = to
	p.UpdatedAt = time.Now()
	return nil
}

// ============================================================================
// Variant Operations
// ============================================================================

func (t *memoryTx) CreateVariant(ctx context.Context, v *store.Variant) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, exists := t.store.variants[v.ID]; exists {
		return store.ErrAlreadyExists
	}

	v.TenantID = t.tenant
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	cp := *v
	t.store.variants[v.ID] = &cp
	return nil
}

func (t *memoryTx) GetVariant(ctx context.Context, id string) (*store.Variant, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	v, ok := t.store.variants[id]
	if !ok || v.TenantID != t.tenant {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (t *memoryTx) VariantsByProduct(ctx context.Context, productID string) ([]*store.Variant, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var out []*store.Variant
	for _, v := range t.store.variants {
		if v.TenantID == t.tenant && v.ProductID == productID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) VariantsByIDs(ctx context.Context, ids []string) (map[string]*store.Variant, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	out := make(map[string]*store.Variant, len(ids))
	for _, id := range ids {
		if v, ok := t.store.variants[id]; ok && v.TenantID == t.tenant {
			cp := *v
			out[id] = &cp
		}
	}
	return out, nil
}

func (t *memoryTx) DeleteVariant(ctx context.Context, id string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	v, ok := t.store.variants[id]
	if !ok || v.TenantID != t.tenant {
		return store.ErrNotFound
	}
	delete(t.store.variants, id)
	return nil
}

func (t *memoryTx) DeleteVariantsByProduct(ctx context.Context, productID string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, v := range t.store.variants {
		if v.TenantID == t.tenant && v.ProductID == productID {
			delete(t.store.variants, id)
		}
	}
	return nil
}

func (t *memoryTx) AdjustVariantQuantity(ctx context.Context, id string, from, to int) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	v, ok := t.store.variants[id]
	if !ok || v.TenantID != t.tenant {
		return store.ErrNotFound
	}
	if v.Quantity != from {
		return store.ErrConcurrentUpdate
	}
	v.Quantity = to
	v.UpdatedAt = time.Now()
	return nil
}

// ============================================================================
// Collection Link Operations
// ============================================================================

func (t *memoryTx) LinkCollection(ctx context.Context, productID, collectionID string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, l := range t.store.links {
		if l.TenantID == t.tenant && l.ProductID == productID && l.CollectionID == collectionID {
			return store.ErrAlreadyExists
		}
	}
	t.store.links = append(t.store.links, store.CollectionLink{
		TenantID:     t.tenant,
		ProductID:    productID,
		CollectionID: collectionID,
	})
	return nil
}

func (t *memoryTx) UnlinkCollection(ctx context.Context, productID, collectionID string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for i, l := range t.store.links {
		if l.TenantID == t.tenant && l.ProductID == productID && l.CollectionID == collectionID {
			t.store.links = append(t.store.links[:i], t.store.links[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *memoryTx) CollectionLinks(ctx context.Context, productID string) ([]string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var out []string
	for _, l := range t.store.links {
		if l.TenantID == t.tenant && l.ProductID == productID {
			out = append(out, l.CollectionID)
		}
	}
	return out, nil
}

func (t *memoryTx) DeleteCollectionLinks(ctx context.Context, productID string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	kept := t.store.links[:0]
	for _, l := range t.store.links {
		if !(l.TenantID == t.tenant && l.ProductID == productID) {
			kept = append(kept, l)
		}
	}
	t.store.links = kept
	return nil
}

// ============================================================================
// Order Operations
// ============================================================================

func (t *memoryTx) CreateOrder(ctx context.Context, o *store.Order) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, exists := t.store.orders[o.ID]; exists {
		return store.ErrAlreadyExists
	}

	o.TenantID = t.tenant
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	cp := *o
	cp.Items = make([]store.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	t.store.orders[o.ID] = &cp
	return nil
}

func (t *memoryTx) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	o, ok := t.store.orders[id]
	if !ok || o.TenantID != t.tenant {
		return nil, store.ErrNotFound
	}
	cp := *o
	cp.Items = make([]store.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp, nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, id, status string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	o, ok := t.store.orders[id]
	if !ok || o.TenantID != t.tenant {
		return store.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (t *memoryTx) AppendStatusHistory(ctx context.Context, h *store.StatusHistoryEntry) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	h.TenantID = t.tenant
	h.CreatedAt = time.Now()
	cp := *h
	t.store.history = append(t.store.history, &cp)
	return nil
}

func (t *memoryTx) StatusHistory(ctx context.Context, orderID string) ([]*store.StatusHistoryEntry, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var out []*store.StatusHistoryEntry
	for _, h := range t.store.history {
		if h.TenantID == t.tenant && h.OrderID == orderID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memoryTx) CountOrdersReferencingProduct(ctx context.Context, productID string) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var count int64
	for _, o := range t.store.orders {
		if o.TenantID != t.tenant {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				count++
				break
			}
		}
	}
	return count, nil
}

// ============================================================================
// Stock Movements & Audit
// ============================================================================

func (t *memoryTx) AppendStockMovement(ctx context.Context, m *store.StockMovement) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	m.TenantID = t.tenant
	m.CreatedAt = time.Now()
	cp := *m
	t.store.movements = append(t.store.movements, &cp)
	return nil
}

func (t *memoryTx) StockMovementsByOrder(ctx context.Context, orderID string) ([]*store.StockMovement, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var out []*store.StockMovement
	for _, m := range t.store.movements {
		if m.TenantID == t.tenant && m.OrderID == orderID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memoryTx) AppendAudit(ctx context.Context, e *store.AuditEntry) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	e.TenantID = t.tenant
	e.CreatedAt = time.Now()
	cp := *e
	t.store.audits = append(t.store.audits, &cp)
	return nil
}
