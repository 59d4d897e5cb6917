// Package store defines the tenant-scoped persistence contract the workflow
// engine and the inventory reconciler mutate state through, together with the
// domain records they operate on.
package store

import (
	"time"
)

// Product is a catalog product row.
type Product struct {
	// ID is the product identifier.
	ID string `db:"id" json:"id"`

	// TenantID is the owning tenant.
	TenantID string `db:"tenant_id" json:"tenant_id"`

	// Name is the display name.
	Name string `db:"name" json:"name"`

	// Slug is the URL slug, unique per tenant.
	Slug string `db:"slug" json:"slug"`

	// Description is the product description.
	Description string `db:"description" json:"description"`

	// Price is the base price.
	Price float64 `db:"price" json:"price"`

	// Status is "active" or "archived".
	Status string `db:"status" json:"status"`

	// Quantity is the rolled-up stock quantity, maintained only when
	// TrackQuantity is set.
	Quantity int `db:"quantity" json:"quantity"`

	// TrackQuantity indicates whether the product aggregates variant stock.
	TrackQuantity bool `db:"track_quantity" json:"track_quantity"`

	// AllowBackorder permits selling below zero stock on the product path.
	AllowBackorder bool `db:"allow_backorder" json:"allow_backorder"`

	// CreatedAt is when the product was created.
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// UpdatedAt is when the product was last updated.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Product status values.
const (
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"
)

// Variant is a purchasable variant of a product.
type Variant struct {
	ID        string `db:"id" json:"id"`
	TenantID  string `db:"tenant_id" json:"tenant_id"`
	ProductID string `db:"product_id" json:"product_id"`

	// Title is the variant title (e.g. "Small").
	Title string `db:"title" json:"title"`

	// SKU is the stock keeping unit.
	SKU string `db:"sku" json:"sku"`

	// Price overrides the product price when non-zero.
	Price float64 `db:"price" json:"price"`

	// Quantity is the available stock. Negative only when backorder
	// applies.
	Quantity int `db:"quantity" json:"quantity"`

	// AllowBackorder permits selling below zero stock for this variant.
	AllowBackorder bool `db:"allow_backorder" json:"allow_backorder"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CollectionLink associates a product with a collection.
type CollectionLink struct {
	TenantID     string `db:"tenant_id" json:"tenant_id"`
	ProductID    string `db:"product_id" json:"product_id"`
	CollectionID string `db:"collection_id" json:"collection_id"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	OrderID     string `db:"order_id" json:"order_id"`
	ProductID   string `db:"product_id" json:"product_id"`
	VariantID   string `db:"variant_id" json:"variant_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
}

// Order is an order row. Status transitions are validated by the orders
// package before any write reaches the store.
type Order struct {
	ID       string      `db:"id" json:"id"`
	TenantID string      `db:"tenant_id" json:"tenant_id"`
	Status   string      `db:"status" json:"status"`
	Total    float64     `db:"total" json:"total"`
	Items    []OrderItem `db:"-" json:"items"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StatusHistoryEntry is one entry of an order's status trail.
type StatusHistoryEntry struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	OrderID    string    `db:"order_id" json:"order_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	Note       string    `db:"note" json:"note"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Stock movement entity kinds.
const (
	StockEntityVariant = "variant"
	StockEntityProduct = "product"
)

// Stock movement reasons.
const (
	MovementReasonOrder   = "order_decrement"
	MovementReasonRestock = "restock"
)

// StockMovement is an immutable audit record of a quantity change.
type StockMovement struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenant_id"`

	// EntityType is "variant" or "product".
	EntityType string `db:"entity_type" json:"entity_type"`

	// EntityID is the variant or product whose quantity changed.
	EntityID string `db:"entity_id" json:"entity_id"`

	// ProductID is the owning product (equals EntityID on the product path).
	ProductID string `db:"product_id" json:"product_id"`

	// OrderID references the order that caused the movement, if any.
	OrderID string `db:"order_id" json:"order_id"`

	QuantityBefore int `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int `db:"quantity_after" json:"quantity_after"`
	Delta          int `db:"delta" json:"delta"`

	// Reason is "order_decrement" or "restock".
	Reason string `db:"reason" json:"reason"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditEntry is the structured audit record emitted around every mutation.
// Audit is observability, never a correctness gate: writers treat failures
// here as best-effort.
type AuditEntry struct {
	ID         string         `db:"id" json:"id"`
	TenantID   string         `db:"tenant_id" json:"tenant_id"`
	Action     string         `db:"action" json:"action"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   string         `db:"entity_id" json:"entity_id"`
	OldValues  map[string]any `db:"old_values" json:"old_values,omitempty"`
	NewValues  map[string]any `db:"new_values" json:"new_values,omitempty"`
	Metadata   map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
