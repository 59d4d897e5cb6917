// Package mysql provides a MySQL implementation of the store.Store interface.
//
// Every table carries a tenant_id column and every query filters on it; the
// tenant scope established by WithTenant is enforced in SQL, not in callers.
// Quantity adjustments are conditional UPDATEs on the previously read value,
// which is what keeps the never-go-negative invariant under concurrent
// writers.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"shopflow/store"
)

// MySQLStore implements the store.Store interface using MySQL.
type MySQLStore struct {
	db *sql.DB
}

var _ store.Store = (*MySQLStore)(nil)

// New creates a new MySQLStore with the given database connection.
func New(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// Open connects to MySQL with the given DSN and returns a store over the
// connection. ParseTime is required so DATETIME columns scan into time.Time.
func Open(dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return New(db), nil
}

// WithTenant runs fn with a handle scoped to the tenant. Each operation on
// the handle commits independently; cross-operation consistency is the
// workflow engine's job via compensation.
func (s *MySQLStore) WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, tx store.Tx) error) error {
	return fn(ctx, &mysqlTx{db: s.db, tenant: tenantID})
}

// CheckIdempotency checks if an operation was already executed.
func (s *MySQLStore) CheckIdempotency(ctx context.Context, key string) (bool, []byte, error) {
	query := `SELECT result, expires_at FROM sf_idempotency WHERE idem_key = ?`

	var result []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, query, key).Scan(&result, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("%w: check idempotency: %v", store.ErrOperationFailed, err)
	}
	if time.Now().After(expiresAt) {
		return false, nil, nil
	}
	return true, result, nil
}

// MarkIdempotency records an executed operation.
func (s *MySQLStore) MarkIdempotency(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	query := `
		INSERT INTO sf_idempotency (idem_key, result, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE result = VALUES(result), expires_at = VALUES(expires_at)
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, key, result, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("%w: mark idempotency: %v", store.ErrOperationFailed, err)
	}
	return nil
}

// mysqlTx is a tenant-scoped handle over the shared connection pool.
type mysqlTx struct {
	db     *sql.DB
	tenant string
}

var _ store.Tx = (*mysqlTx)(nil)

// TenantID returns the tenant this handle is scoped to.
func (t *mysqlTx) TenantID() string {
	return t.tenant
}

// ============================================================================
// Product Operations
// ============================================================================

const productColumns = `id, tenant_id, name, slug, description, price, status,
	quantity, track_quantity, allow_backorder, created_at, updated_at`

func (t *mysqlTx) CreateProduct(ctx context.Context, p *store.Product) error {
	query := `
		INSERT INTO sf_products (
			id, tenant_id, name, slug, description, price, status,
			quantity, track_quantity, allow_backorder, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	p.TenantID = t.tenant
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := t.db.ExecContext(ctx, query,
		p.ID, p.TenantID, p.Name, p.Slug, p.Description, p.Price, p.Status,
		p.Quantity, p.TrackQuantity, p.AllowBackorder, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "slug") {
				return store.ErrDuplicateSlug
			}
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("%w: create product: %v", store.ErrOperationFailed, err)
	}
	return nil
}

func (t *mysqlTx) GetProduct(ctx context.Context, id string) (*store.Product, error) {
	query := `SELECT ` + productColumns + ` FROM sf_products WHERE id = ? AND tenant_id = ?`
	return t.scanProduct(t.db.QueryRowContext(ctx, query, id, t.tenant))
}

func (t *mysqlTx) GetProductBySlug(ctx context.Context, slug string) (*store.Product, error) {
	query := `SELECT ` + productColumns + ` FROM sf_products WHERE slug = ? AND tenant_id = ?`
	return t.scanProduct(t.db.QueryRowContext(ctx, query, slug, t.tenant))
}

func (t *mysqlTx) scanProduct(row *sql.Row) (*store.Product, error) {
	var p store.Product
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Status,
		&p.Quantity, &p.TrackQuantity, &p.AllowBackorder, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan product: %v", store.ErrOperationFailed, err)
	}
	return &p, nil
}

func (t *mysqlTx) UpdateProduct(ctx context.Context, p *store.Product) error {
	query := `
		UPDATE sf_products SET
			name = ?, slug = ?, description = ?, price = ?, status = ?,
			quantity = ?, track_quantity = ?, allow_backorder = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`

	p.UpdatedAt = time.Now()
	result, err := t.db.ExecContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.Status,
		p.Quantity, p.TrackQuantity, p.AllowBackorder, p.UpdatedAt,
		p.ID, t.tenant,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicateSlug
		}
		return fmt.Errorf("%w: update product: %v", store.ErrOperationFailed, err)
	}
	return requireRow(result, "update product")
}

func (t *mysqlTx) DeleteProduct(ctx context.Context, id string) error {
	result, err := t.db.ExecContext(ctx,
		`DELETE FROM sf_products WHERE id = ? AND tenant_id = ?`, id, t.tenant)
	if err != nil {
		return fmt.Errorf("%w: delete product: %v", store.ErrOperationFailed, err)
	}
	return requireRow(result, "delete product")
}

func (t *mysqlTx) ProductsByIDs(ctx context.Context, ids []string) (map[string]*store.Product, error) {
	out := make(map[string]*store.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + productColumns + ` FROM sf_products WHERE tenant_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := t.db.QueryContext(ctx, query, withTenantArg(t.tenant, ids)...)
	if err != nil {
		return nil, fmt.Errorf("%w: products by ids: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p store.Product
		if err := rows.Scan(
			&p.ID, &p.TenantID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Status,
			&p.Quantity, &p.TrackQuantity, &p.AllowBackorder, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan product: %v", store.ErrOperationFailed, err)
		}
		prod := p
		out[p.ID] = &prod
	}
	return out, rows.Err()
}

func (t *mysqlTx) AdjustProductQuantity(ctx context.Context, id string, from, to int) error {
	query := `
		UPDATE sf_products SET quantity = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND quantity = ?
	`
	result, err := t.db.ExecContext(ctx, query, to, time.Now(), id, t.tenant, from)
	if err != nil {
		return fmt.Errorf("%w: adjust product quantity: %v", store.ErrOperationFailed, err)
	}
	return t.resolveAdjust(ctx, result, "sf_products", id)
}

// ============================================================================
// Variant Operations
// ============================================================================

const variantColumns = `id, tenant_id, product_id, title, sku, price,
	quantity, allow_backorder, created_at, updated_at`

func (t *mysqlTx) CreateVariant(ctx context.Context, v *store.Variant) error {
	query := `
		INSERT INTO sf_variants (
			id, tenant_id, product_id, title, sku, price,
			quantity, allow_backorder, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	v.TenantID = t.tenant
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := t.db.ExecContext(ctx, query,
		v.ID, v.TenantID, v.ProductID, v.Title, v.SKU, v.Price,
		v.Quantity, v.AllowBackorder, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("%w: create variant: %v", store.ErrOperationFailed, err)
	}
	return nil
}

func (t *mysqlTx) GetVariant(ctx context.Context, id string) (*store.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM sf_variants WHERE id = ? AND tenant_id = ?`

	var v store.Variant
	err := t.db.QueryRowContext(ctx, query, id, t.tenant).Scan(
		&v.ID, &v.TenantID, &v.ProductID, &v.Title, &v.SKU, &v.Price,
		&v.Quantity, &v.AllowBackorder, &v.CreatedAt, &v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get variant: %v", store.ErrOperationFailed, err)
	}
	return &v, nil
}

func (t *mysqlTx) VariantsByProduct(ctx context.Context, productID string) ([]*store.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM sf_variants WHERE product_id = ? AND tenant_id = ? ORDER BY created_at`
	rows, err := t.db.QueryContext(ctx, query, productID, t.tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: variants by product: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()
	return scanVariants(rows)
}

func (t *mysqlTx) VariantsByIDs(ctx context.Context, ids []string) (map[string]*store.Variant, error) {
	out := make(map[string]*store.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + variantColumns + ` FROM sf_variants WHERE tenant_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := t.db.QueryContext(ctx, query, withTenantArg(t.tenant, ids)...)
	if err != nil {
		return nil, fmt.Errorf("%w: variants by ids: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()

	variants, err := scanVariants(rows)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}

func scanVariants(rows *sql.Rows) ([]*store.Variant, error) {
	var out []*store.Variant
	for rows.Next() {
		var v store.Variant
		if err := rows.Scan(
			&v.ID, &v.TenantID, &v.ProductID, &v.Title, &v.SKU, &v.Price,
			&v.Quantity, &v.AllowBackorder, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan variant: %v", store.ErrOperationFailed, err)
		}
		variant := v
		out = append(out, &variant)
	}
	return out, rows.Err()
}

func (t *mysqlTx) DeleteVariant(ctx context.Context, id string) error {
	result, err := t.db.ExecContext(ctx,
		`DELETE FROM sf_variants WHERE id = ? AND tenant_id = ?`, id, t.tenant)
	if err != nil {
		return fmt.Errorf("%w: delete variant: %v", store.ErrOperationFailed, err)
	}
	return requireRow(result, "delete variant")
}

func (t *mysqlTx) DeleteVariantsByProduct(ctx context.Context, productID string) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM sf_variants WHERE product_id = ? AND tenant_id = ?`, productID, t.tenant)
	if err != nil {
		return fmt.Errorf("%w: delete variants by product: %v", store.ErrOperationFailed, err)
	}
	return nil
}

func (t *mysqlTx) AdjustVariantQuantity(ctx context.Context, id string, from, to int) error {
	query := `
		UPDATE sf_variants SET quantity = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND quantity = ?
	`
	result, err := t.db.ExecContext(ctx, query, to, time.Now(), id, t.tenant, from)
	if err != nil {
		return fmt.Errorf("%w: adjust variant quantity: %v", store.ErrOperationFailed, err)
	}
	return t.resolveAdjust(ctx, result, "sf_variants", id)
}

// resolveAdjust distinguishes a lost conditional update from a missing row.
func (t *mysqlTx) resolveAdjust(ctx context.Context, result sql.Result, table, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", store.ErrOperationFailed, err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	query := `SELECT 1 FROM ` + table + ` WHERE id = ? AND tenant_id = ?`
	err = t.db.QueryRowContext(ctx, query, id, t.tenant).Scan(&exists)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: existence check: %v", store.ErrOperationFailed, err)
	}
	return store.ErrConcurrentUpdate
}

// ============================================================================
// Collection Link Operations
// ============================================================================

func (t *mysqlTx) LinkCollection(ctx context.Context, productID, collectionID string) error {
	query := `INSERT INTO sf_collection_links (tenant_id, product_id, collection_id) VALUES (?, ?, ?)`
	_, err := t.db.ExecContext(ctx, query, t.tenant, productID, collectionID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("%w: link collection: %v", store.ErrOperationFailed, err)
	}
	return nil
}

func (t *mysqlTx) UnlinkCollection(ctx context.Context, productID, collectionID string) error {
	result, err := t.db.ExecContext(ctx,
		`DELETE FROM sf_collection_links WHERE tenant_id = ? AND product_id = ? AND collection_id = ?`,
		t.tenant, productID, collectionID)
	if err != nil {
		return fmt.Errorf("%w: unlink collection: %v", store.ErrOperationFailed, err)
	}
	return requireRow(result, "unlink collection")
}

func (t *mysqlTx) CollectionLinks(ctx context.Context, productID string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT collection_id FROM sf_collection_links WHERE tenant_id = ? AND product_id = ?`,
		t.tenant, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: collection links: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("%w: scan collection link: %v", store.ErrOperationFailed, err)
		}
		out = append(out, cid)
	}
	return out, rows.Err()
}

func (t *mysqlTx) DeleteCollectionLinks(ctx context.Context, productID string) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM sf_collection_links WHERE tenant_id = ? AND product_id = ?`,
		t.tenant, productID)
	if err != nil {
		return fmt.Errorf("%w: delete collection links: %v", store.ErrOperationFailed, err)
	}
	return nil
}

// ============================================================================
// Order Operations
// ============================================================================

func (t *mysqlTx) CreateOrder(ctx context.Context, o *store.Order) error {
	query := `
		INSERT INTO sf_orders (id, tenant_id, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	o.TenantID = t.tenant
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := t.db.ExecContext(ctx, query, o.ID, o.TenantID, o.Status, o.Total, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("%w: create order: %v", store.ErrOperationFailed, err)
	}

	itemQuery := `
		INSERT INTO sf_order_items (order_id, tenant_id, product_id, variant_id, product_name, quantity)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		_, err := t.db.ExecContext(ctx, itemQuery,
			item.OrderID, t.tenant, item.ProductID, item.VariantID, item.ProductName, item.Quantity)
		if err != nil {
			return fmt.Errorf("%w: create order item: %v", store.ErrOperationFailed, err)
		}
	}
	return nil
}

func (t *mysqlTx) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	query := `SELECT id, tenant_id, status, total, created_at, updated_at FROM sf_orders WHERE id = ? AND tenant_id = ?`

	var o store.Order
	err := t.db.QueryRowContext(ctx, query, id, t.tenant).Scan(
		&o.ID, &o.TenantID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %v", store.ErrOperationFailed, err)
	}

	rows, err := t.db.QueryContext(ctx,
		`SELECT order_id, product_id, variant_id, product_name, quantity FROM sf_order_items WHERE order_id = ? AND tenant_id = ?`,
		id, t.tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: get order items: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item store.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.VariantID, &item.ProductName, &item.Quantity); err != nil {
			return nil, fmt.Errorf("%w: scan order item: %v", store.ErrOperationFailed, err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *mysqlTx) UpdateOrderStatus(ctx context.Context, id, status string) error {
	result, err := t.db.ExecContext(ctx,
		`UPDATE sf_orders SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		status, time.Now(), id, t.tenant)
	if err != nil {
		return fmt.Errorf("%w: update order status: %v", store.ErrOperationFailed, err)
	}
	return requireRow(result, "update order status")
}

func (t *mysqlTx) AppendStatusHistory(ctx context.Context, h *store.StatusHistoryEntry) error {
	query := `
		INSERT INTO sf_order_status_history (id, tenant_id, order_id, from_status, to_status, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	h.TenantID = t.tenant
	h.CreatedAt = time.Now()

	_, err := t.db.ExecContext(ctx, query,
		h.ID, h.TenantID, h.OrderID, h.FromStatus, h.ToStatus, h.Note, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: append status history: %v", store.ErrOperationFailed, err)
	}
	return nil
}

func (t *mysqlTx) StatusHistory(ctx context.Context, orderID string) ([]*store.StatusHistoryEntry, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, tenant_id, order_id, from_status, to_status, note, created_at
		 FROM sf_order_status_history WHERE order_id = ? AND tenant_id = ? ORDER BY created_at`,
		orderID, t.tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: status history: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()

	var out []*store.StatusHistoryEntry
	for rows.Next() {
		var h store.StatusHistoryEntry
		if err := rows.Scan(&h.ID, &h.TenantID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan status history: %v", store.ErrOperationFailed, err)
		}
		entry := h
		out = append(out, &entry)
	}
	return out, rows.Err()
}

func (t *mysqlTx) CountOrdersReferencingProduct(ctx context.Context, productID string) (int64, error) {
	query := `SELECT COUNT(DISTINCT order_id) FROM sf_order_items WHERE tenant_id = ? AND product_id = ?`

	var count int64
	if err := t.db.QueryRowContext(ctx, query, t.tenant, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count order references: %v", store.ErrOperationFailed, err)
	}
	return count, nil
}

// ============================================================================
// Stock Movements & Audit
// ============================================================================

func (t *mysqlTx) AppendStockMovement(ctx context.Context, m *store.StockMovement) error {
	query := `
		INSERT INTO sf_stock_movements (
			id, tenant_id, entity_type, entity_id, product_id, order_id,
			quantity_before, quantity_after, delta, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	m.TenantID = t.tenant
	m.CreatedAt = time.Now()

	_, err := t.db.ExecContext(ctx, query,
		m.ID, m.TenantID, m.EntityType, m.EntityID, m.ProductID, m.OrderID,
		m.QuantityBefore, m.QuantityAfter, m.Delta, m.Reason, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: append stock movement: %v", store.ErrOperationFailed, err)
	}
	return nil
}

func (t *mysqlTx) StockMovementsByOrder(ctx context.Context, orderID string) ([]*store.StockMovement, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, tenant_id, entity_type, entity_id, product_id, order_id,
		        quantity_before, quantity_after, delta, reason, created_at
		 FROM sf_stock_movements WHERE order_id = ? AND tenant_id = ? ORDER BY created_at`,
		orderID, t.tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: stock movements by order: %v", store.ErrOperationFailed, err)
	}
	defer rows.Close()

	var out []*store.StockMovement
	for rows.Next() {
		var m store.StockMovement
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.EntityType, &m.EntityID, &m.ProductID, &m.OrderID,
			&m.QuantityBefore, &m.QuantityAfter, &m.Delta, &m.Reason, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan stock movement: %v", store.ErrOperationFailed, err)
		}
		movement := m
		out = append(out, &movement)
	}
	return out, rows.Err()
}

func (t *mysqlTx) AppendAudit(ctx context.Context, e *store.AuditEntry) error {
	query := `
		INSERT INTO sf_audit_log (
			id, tenant_id, action, entity_type, entity_id,
			old_values, new_values, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	e.TenantID = t.tenant
	e.CreatedAt = time.Now()

	oldValues, err := json.Marshal(e.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newValues, err := json.Marshal(e.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = t.db.ExecContext(ctx, query,
		e.ID, e.TenantID, e.Action, e.EntityType, e.EntityID,
		oldValues, newValues, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: append audit: %v", store.ErrOperationFailed, err)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// requireRow converts a zero-rows-affected result to ErrNotFound.
func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s rows affected: %v", store.ErrOperationFailed, op, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// withTenantArg prepends the tenant to the id arguments.
func withTenantArg(tenant string, ids []string) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// isDuplicateKeyError checks if the error is a MySQL duplicate key error.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	// sqlmock surfaces plain errors, so fall back to message matching.
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "Error 1062")
}
