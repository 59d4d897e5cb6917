package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shopflow/event"
	"shopflow/store"
)

// stockRow is the entity-neutral view of a row holding stock.
type stockRow struct {
	id             string
	productID      string
	name           string
	quantity       int
	allowBackorder bool
}

// stockAccess parameterizes the shared decrement skeleton by entity kind.
// The variant path and the product-level path differ only in how rows are
// fetched and written; the per-item isolation, clamping, and audit logic is
// one routine.
type stockAccess struct {
	entityType string
	notFound   ErrorCode
	itemKey    func(item LineItem) string
	fetch      func(ctx context.Context, tx store.Tx, ids []string) (map[string]stockRow, error)
	reread     func(ctx context.Context, tx store.Tx, id string) (stockRow, bool, error)
	adjust     func(ctx context.Context, tx store.Tx, id string, from, to int) error
	// afterWrite runs after a successful decrement, for derived state such
	// as the product's rolled-up quantity. Best effort.
	afterWrite func(ctx context.Context, tx store.Tx, row stockRow, actual int)
}

// DecrementStockForOrder decrements stock per variant for the given order
// line items. Items succeed and fail independently; the returned Result
// carries both lists and is never nil on a nil error. Only infrastructure
// failures (the batch fetch itself, the tenant scope) return an error.
//
// When an idempotency checker is configured, a repeat call for the same order
// returns the recorded result with Replayed set instead of decrementing
// again. When a locker is configured, concurrent batches for the same order
// serialize on a per-order lock.
func (s *Service) DecrementStockForOrder(ctx context.Context, tenantID, orderID string, items []LineItem, opts Options) (*Result, error) {
	ctx, span := s.tracer.StartBatch(ctx, tenantID, orderID, len(items))
	defer span.End()

	if s.checker != nil && orderID != "" {
		key := idempotencyKey(tenantID, orderID)
		exists, cached, err := s.checker.Check(ctx, key)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("idempotency check for order %s: %w", orderID, err)
		}
		if exists {
			var replay Result
			if err := json.Unmarshal(cached, &replay); err == nil {
				replay.Replayed = true
				return &replay, nil
			}
			s.logger.Printf("[Inventory] unreadable idempotency record for order %s, re-running batch", orderID)
		}
	}

	if s.locker != nil && orderID != "" {
		handle, err := s.locker.Acquire(ctx, []string{lockKey(tenantID, orderID)}, s.config.LockTTL)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		defer handle.Release(ctx)
	}

	result, err := s.decrementBatch(ctx, tenantID, orderID, items, opts, s.variantAccess())
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.finishBatch(ctx, tenantID, orderID, result)

	if s.checker != nil && orderID != "" {
		payload, merr := json.Marshal(result)
		if merr == nil {
			if merr = s.checker.Mark(ctx, idempotencyKey(tenantID, orderID), payload, s.config.IdempotencyTTL); merr != nil {
				s.logger.Printf("[Inventory] failed to mark idempotency for order %s: %v", orderID, merr)
			}
		}
	}

	return result, nil
}

// DecrementProductStock applies the same per-item isolation directly against
// product-level quantity, for catalogs that do not use the variant model.
// Items key off ProductID.
func (s *Service) DecrementProductStock(ctx context.Context, tenantID, orderID string, items []LineItem, opts Options) (*Result, error) {
	ctx, span := s.tracer.StartBatch(ctx, tenantID, orderID, len(items))
	defer span.End()

	result, err := s.decrementBatch(ctx, tenantID, orderID, items, opts, s.productAccess())
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.finishBatch(ctx, tenantID, orderID, result)
	return result, nil
}

// decrementBatch is the shared fetch-loop-clamp-write-audit skeleton.
func (s *Service) decrementBatch(ctx context.Context, tenantID, orderID string, items []LineItem, opts Options, access *stockAccess) (*Result, error) {
	result := &Result{
		Success:          true,
		DecrementedItems: []DecrementedItem{},
		Errors:           []ItemError{},
	}

	err := s.store.WithTenant(ctx, tenantID, func(ctx context.Context, tx store.Tx) error {
		ids := distinctKeys(items, access.itemKey)
		rows, err := access.fetch(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("batch fetch: %w", err)
		}

		for _, item := range items {
			key := access.itemKey(item)
			row, ok := rows[key]
			if !ok {
				result.Success = false
				result.Errors = append(result.Errors, s.itemError(access, item, access.notFound,
					fmt.Sprintf("%s %s not found", access.entityType, key)))
				continue
			}
			if item.Quantity <= 0 {
				continue
			}

			canBackorder := opts.AllowBackorder || row.allowBackorder
			if row.quantity < item.Quantity && !canBackorder {
				result.Errors = append(result.Errors, s.itemError(access, item, CodeInsufficientStock,
					fmt.Sprintf("insufficient stock for %s %s: have %d, requested %d",
						access.entityType, key, row.quantity, item.Quantity)))
				if !opts.SkipInsufficientStock {
					result.Success = false
				}
				continue
			}

			before, after, err := s.applyDecrement(ctx, tx, access, row, item.Quantity, canBackorder)
			if err != nil {
				result.Success = false
				result.Errors = append(result.Errors, s.itemError(access, item, CodeUnknownError,
					fmt.Sprintf("decrement %s %s: %v", access.entityType, key, err)))
				continue
			}

			actual := before - after
			if access.afterWrite != nil {
				access.afterWrite(ctx, tx, row, actual)
			}

			movement := &store.StockMovement{
				ID:             uuid.New().String(),
				EntityType:     access.entityType,
				EntityID:       key,
				ProductID:      row.productID,
				OrderID:        orderID,
				QuantityBefore: before,
				QuantityAfter:  after,
				Delta:          -actual,
				Reason:         store.MovementReasonOrder,
			}
			if merr := tx.AppendStockMovement(ctx, movement); merr != nil {
				s.logger.Printf("[Inventory] failed to record stock movement for %s %s: %v",
					access.entityType, key, merr)
			}

			name := item.ProductName
			if name == "" {
				name = row.name
			}
			result.DecrementedItems = append(result.DecrementedItems, DecrementedItem{
				VariantID:      item.VariantID,
				ProductID:      row.productID,
				ProductName:    name,
				QuantityBefore: before,
				QuantityAfter:  after,
				Decremented:    actual,
			})
			result.TotalUnits += actual
		}

		if len(result.DecrementedItems) > 0 {
			s.audit.Record(ctx, tx, &store.AuditEntry{
				Action:     "inventory.decrement",
				EntityType: "order",
				EntityID:   orderID,
				Metadata: map[string]any{
					"items_decremented": len(result.DecrementedItems),
					"total_units":       result.TotalUnits,
					"had_errors":        len(result.Errors) > 0,
				},
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applyDecrement writes the clamped new quantity with a conditional update.
// Losing the condition means another writer moved the row; the fresh quantity
// is authoritative, so reread and recompute before retrying.
func (s *Service) applyDecrement(ctx context.Context, tx store.Tx, access *stockAccess, row stockRow, requested int, canBackorder bool) (before, after int, err error) {
	current := row.quantity
	for attempt := 0; attempt <= s.config.MaxAdjustRetries; attempt++ {
		newQty := current - requested
		if newQty < 0 && !canBackorder {
			newQty = 0
		}

		err = access.adjust(ctx, tx, row.id, current, newQty)
		if err == nil {
			return current, newQty, nil
		}
		if !errors.Is(err, store.ErrConcurrentUpdate) {
			return 0, 0, err
		}

		fresh, ok, rerr := access.reread(ctx, tx, row.id)
		if rerr != nil {
			return 0, 0, rerr
		}
		if !ok {
			return 0, 0, store.ErrNotFound
		}
		current = fresh.quantity
	}
	return 0, 0, fmt.Errorf("quantity adjust for %s %s: %w", access.entityType, row.id, err)
}

// itemError records the per-code metric and builds the error entry.
func (s *Service) itemError(access *stockAccess, item LineItem, code ErrorCode, msg string) ItemError {
	s.metrics.StockDecrementError(string(code))
	return ItemError{
		VariantID: item.VariantID,
		ProductID: item.ProductID,
		Code:      code,
		Message:   msg,
	}
}

// finishBatch emits the batch metrics and the domain event.
func (s *Service) finishBatch(ctx context.Context, tenantID, orderID string, result *Result) {
	if len(result.DecrementedItems) > 0 {
		s.metrics.StockDecremented(len(result.DecrementedItems), result.TotalUnits)
	}

	ev := event.New(event.EventInventoryDecremented).
		WithTenant(tenantID).
		WithEntity(orderID).
		WithData("items_decremented", len(result.DecrementedItems)).
		WithData("total_units", result.TotalUnits).
		WithData("error_count", len(result.Errors)).
		WithData("success", result.Success)
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Printf("[Inventory] failed to publish decrement event for order %s: %v", orderID, err)
	}
}

// variantAccess wires the skeleton to the variant model. The owning products
// are fetched alongside the variants so the rolled-up product quantity can be
// maintained without per-item queries.
func (s *Service) variantAccess() *stockAccess {
	var products map[string]*store.Product

	access := &stockAccess{
		entityType: store.StockEntityVariant,
		notFound:   CodeVariantNotFound,
		itemKey: func(item LineItem) string {
			return item.VariantID
		},
		fetch: func(ctx context.Context, tx store.Tx, ids []string) (map[string]stockRow, error) {
			variants, err := tx.VariantsByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}

			productIDs := make([]string, 0, len(variants))
			seen := make(map[string]bool, len(variants))
			for _, v := range variants {
				if v.ProductID != "" && !seen[v.ProductID] {
					seen[v.ProductID] = true
					productIDs = append(productIDs, v.ProductID)
				}
			}
			products, err = tx.ProductsByIDs(ctx, productIDs)
			if err != nil {
				return nil, err
			}

			rows := make(map[string]stockRow, len(variants))
			for id, v := range variants {
				rows[id] = stockRow{
					id:             v.ID,
					productID:      v.ProductID,
					name:           v.Title,
					quantity:       v.Quantity,
					allowBackorder: v.AllowBackorder,
				}
			}
			return rows, nil
		},
		reread: func(ctx context.Context, tx store.Tx, id string) (stockRow, bool, error) {
			v, err := tx.GetVariant(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return stockRow{}, false, nil
			}
			if err != nil {
				return stockRow{}, false, err
			}
			return stockRow{
				id:             v.ID,
				productID:      v.ProductID,
				name:           v.Title,
				quantity:       v.Quantity,
				allowBackorder: v.AllowBackorder,
			}, true, nil
		},
		adjust: func(ctx context.Context, tx store.Tx, id string, from, to int) error {
			return tx.AdjustVariantQuantity(ctx, id, from, to)
		},
	}

	access.afterWrite = func(ctx context.Context, tx store.Tx, row stockRow, actual int) {
		p := products[row.productID]
		if p == nil || !p.TrackQuantity || actual <= 0 {
			return
		}
		s.rollupProductQuantity(ctx, tx, p, actual)
	}

	return access
}

// rollupProductQuantity decrements the product's aggregate quantity by the
// actual amount, never below zero. The rollup is derived state, so a
// persistent conflict is logged rather than failing the item.
func (s *Service) rollupProductQuantity(ctx context.Context, tx store.Tx, p *store.Product, actual int) {
	current := p.Quantity
	for attempt := 0; attempt <= s.config.MaxAdjustRetries; attempt++ {
		newQty := current - actual
		if newQty < 0 {
			newQty = 0
		}

		err := tx.AdjustProductQuantity(ctx, p.ID, current, newQty)
		if err == nil {
			p.Quantity = newQty
			return
		}
		if !errors.Is(err, store.ErrConcurrentUpdate) {
			s.logger.Printf("[Inventory] product quantity rollup failed for %s: %v", p.ID, err)
			return
		}

		fresh, rerr := tx.GetProduct(ctx, p.ID)
		if rerr != nil {
			s.logger.Printf("[Inventory] product quantity rollup reread failed for %s: %v", p.ID, rerr)
			return
		}
		current = fresh.Quantity
	}
	s.logger.Printf("[Inventory] product quantity rollup gave up for %s after %d attempts", p.ID, s.config.MaxAdjustRetries+1)
}

// productAccess wires the skeleton to product-level quantity.
func (s *Service) productAccess() *stockAccess {
	return &stockAccess{
		entityType: store.StockEntityProduct,
		notFound:   CodeProductNotFound,
		itemKey: func(item LineItem) string {
			return item.ProductID
		},
		fetch: func(ctx context.Context, tx store.Tx, ids []string) (map[string]stockRow, error) {
			products, err := tx.ProductsByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			rows := make(map[string]stockRow, len(products))
			for id, p := range products {
				rows[id] = stockRow{
					id:             p.ID,
					productID:      p.ID,
					name:           p.Name,
					quantity:       p.Quantity,
					allowBackorder: p.AllowBackorder,
				}
			}
			return rows, nil
		},
		reread: func(ctx context.Context, tx store.Tx, id string) (stockRow, bool, error) {
			p, err := tx.GetProduct(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return stockRow{}, false, nil
			}
			if err != nil {
				return stockRow{}, false, err
			}
			return stockRow{
				id:             p.ID,
				productID:      p.ID,
				name:           p.Name,
				quantity:       p.Quantity,
				allowBackorder: p.AllowBackorder,
			}, true, nil
		},
		adjust: func(ctx context.Context, tx store.Tx, id string, from, to int) error {
			return tx.AdjustProductQuantity(ctx, id, from, to)
		},
	}
}

// distinctKeys returns the distinct non-empty keys of the items, in first
// appearance order.
func distinctKeys(items []LineItem, key func(LineItem) string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		k := key(item)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
