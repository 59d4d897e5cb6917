package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shopflow/event"
	"shopflow/retry"
	"shopflow/store"
)

// RestockResult is the outcome of returning an order's stock.
type RestockResult struct {
	// Items is the number of rows re-incremented.
	Items int
	// Units is the total units returned to stock.
	Units int
	// Skipped is true when the order was already restocked.
	Skipped bool
}

// RestockForOrder returns the units an order previously decremented back to
// stock, driven by the order's recorded stock movements rather than the order
// lines: the movements hold the actual decremented amounts after clamping, so
// replaying them in reverse restores exactly what was taken. A second call
// for the same order is a no-op.
func (s *Service) RestockForOrder(ctx context.Context, tenantID, orderID string) (*RestockResult, error) {
	result := &RestockResult{}

	err := s.store.WithTenant(ctx, tenantID, func(ctx context.Context, tx store.Tx) error {
		movements, err := tx.StockMovementsByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load stock movements: %w", err)
		}

		var decrements []*store.StockMovement
		for _, m := range movements {
			switch m.Reason {
			case store.MovementReasonRestock:
				result.Skipped = true
				return nil
			case store.MovementReasonOrder:
				decrements = append(decrements, m)
			}
		}
		if len(decrements) == 0 {
			return nil
		}

		for _, m := range decrements {
			units := -m.Delta
			if units <= 0 {
				continue
			}

			before, after, err := s.applyIncrement(ctx, tx, m.EntityType, m.EntityID, units)
			if err != nil {
				s.logger.Printf("[Inventory] restock failed for %s %s (order %s): %v",
					m.EntityType, m.EntityID, orderID, err)
				continue
			}

			restock := &store.StockMovement{
				ID:             uuid.New().String(),
				EntityType:     m.EntityType,
				EntityID:       m.EntityID,
				ProductID:      m.ProductID,
				OrderID:        orderID,
				QuantityBefore: before,
				QuantityAfter:  after,
				Delta:          units,
				Reason:         store.MovementReasonRestock,
			}
			if merr := tx.AppendStockMovement(ctx, restock); merr != nil {
				s.logger.Printf("[Inventory] failed to record restock movement for %s %s: %v",
					m.EntityType, m.EntityID, merr)
			}

			result.Items++
			result.Units += units
		}

		if result.Items > 0 {
			s.audit.Record(ctx, tx, &store.AuditEntry{
				Action:     "inventory.restock",
				EntityType: "order",
				EntityID:   orderID,
				Metadata: map[string]any{
					"items_restocked": result.Items,
					"total_units":     result.Units,
				},
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Items > 0 {
		s.metrics.StockRestocked(result.Items, result.Units)
		ev := event.New(event.EventInventoryRestocked).
			WithTenant(tenantID).
			WithEntity(orderID).
			WithData("items_restocked", result.Items).
			WithData("total_units", result.Units)
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Printf("[Inventory] failed to publish restock event for order %s: %v", orderID, err)
		}
	}

	return result, nil
}

// applyIncrement adds units back to a variant or product with the same
// conditional-write loop the decrement path uses.
func (s *Service) applyIncrement(ctx context.Context, tx store.Tx, entityType, id string, units int) (before, after int, err error) {
	read := func() (int, error) {
		if entityType == store.StockEntityProduct {
			p, err := tx.GetProduct(ctx, id)
			if err != nil {
				return 0, err
			}
			return p.Quantity, nil
		}
		v, err := tx.GetVariant(ctx, id)
		if err != nil {
			return 0, err
		}
		return v.Quantity, nil
	}
	adjust := func(from, to int) error {
		if entityType == store.StockEntityProduct {
			return tx.AdjustProductQuantity(ctx, id, from, to)
		}
		return tx.AdjustVariantQuantity(ctx, id, from, to)
	}

	current, err := read()
	if err != nil {
		return 0, 0, err
	}
	for attempt := 0; attempt <= s.config.MaxAdjustRetries; attempt++ {
		err = adjust(current, current+units)
		if err == nil {
			return current, current + units, nil
		}
		if !errors.Is(err, store.ErrConcurrentUpdate) {
			return 0, 0, err
		}
		current, err = read()
		if err != nil {
			return 0, 0, err
		}
	}
	return 0, 0, fmt.Errorf("quantity adjust for %s %s: %w", entityType, id, err)
}

// DecrementStockForOrderWithRetry runs the batch under the background-job
// retry policy: transient infrastructure failures are retried with backoff,
// item-level errors are not (the batch already returned a result).
func (s *Service) DecrementStockForOrderWithRetry(ctx context.Context, tenantID, orderID string, items []LineItem, opts Options, cfg retry.Config) (*Result, error) {
	var result *Result
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		var rerr error
		result, rerr = s.DecrementStockForOrder(ctx, tenantID, orderID, items, opts)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
