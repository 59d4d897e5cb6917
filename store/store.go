package store

import (
	"context"
	"errors"
	"time"
)

// Store errors
var (
	// ErrNotFound indicates the record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateSlug indicates a product slug is already taken within the tenant
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrAlreadyExists indicates the record already exists
	ErrAlreadyExists = errors.New("record already exists")

	// ErrConcurrentUpdate indicates a conditional write lost a race with a
	// concurrent writer
	ErrConcurrentUpdate = errors.New("concurrent update conflict")

	// ErrOperationFailed indicates a store operation failed
	ErrOperationFailed = errors.New("store operation failed")
)

// Tx is a tenant-scoped store handle. It is deliberately NOT one atomic
// database transaction spanning a whole workflow: each operation commits
// independently, and consistency across a multi-step workflow is the saga
// engine's job via explicit compensation. Single-operation atomicity (such
// as the conditional quantity adjustments) is guaranteed by implementations.
//
// A Tx is exclusively owned by the single in-flight call it was created for
// and must never be shared across concurrent workflow runs.
type Tx interface {
	// TenantID returns the tenant this handle is scoped to.
	TenantID() string

	// Product operations
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error)

	// AdjustProductQuantity conditionally moves a product's rolled-up
	// quantity from `from` to `to`. Returns ErrConcurrentUpdate when the
	// stored quantity no longer equals `from`.
	AdjustProductQuantity(ctx context.Context, id string, from, to int) error

	// Variant operations
	CreateVariant(ctx context.Context, v *Variant) error
	GetVariant(ctx context.Context, id string) (*Variant, error)
	VariantsByProduct(ctx context.Context, productID string) ([]*Variant, error)
	VariantsByIDs(ctx context.Context, ids []string) (map[string]*Variant, error)
	DeleteVariant(ctx context.Context, id string) error
	DeleteVariantsByProduct(ctx context.Context, productID string) error

	// AdjustVariantQuantity conditionally moves a variant's quantity from
	// `from` to `to`. Returns ErrConcurrentUpdate when the stored quantity
	// no longer equals `from`; callers re-read and recompute.
	AdjustVariantQuantity(ctx context.Context, id string, from, to int) error

	// Collection link operations
	LinkCollection(ctx context.Context, productID, collectionID string) error
	UnlinkCollection(ctx context.Context, productID, collectionID string) error
	CollectionLinks(ctx context.Context, productID string) ([]string, error)
	DeleteCollectionLinks(ctx context.Context, productID string) error

	// Order operations
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
	AppendStatusHistory(ctx context.Context, h *StatusHistoryEntry) error
	StatusHistory(ctx context.Context, orderID string) ([]*StatusHistoryEntry, error)

	// CountOrdersReferencingProduct reports how many orders contain a line
	// item for the product. Used by the delete-product guard.
	CountOrdersReferencingProduct(ctx context.Context, productID string) (int64, error)

	// Stock movement and audit trail
	AppendStockMovement(ctx context.Context, m *StockMovement) error
	StockMovementsByOrder(ctx context.Context, orderID string) ([]*StockMovement, error)
	AppendAudit(ctx context.Context, e *AuditEntry) error
}

// Store is the transactional store contract. WithTenant provides a handle
// scoped to one tenant's data partition; the engine and the reconciler never
// issue operations outside such a handle.
type Store interface {
	// WithTenant runs fn with a handle bound to the tenant. The handle is
	// valid only for the duration of fn.
	WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, tx Tx) error) error

	// CheckIdempotency checks if an operation keyed by `key` was already
	// executed, returning its cached result if so.
	CheckIdempotency(ctx context.Context, key string) (exists bool, result []byte, err error)

	// MarkIdempotency records an executed operation and its result with a TTL.
	MarkIdempotency(ctx context.Context, key string, result []byte, ttl time.Duration) error
}
