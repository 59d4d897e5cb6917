// Package idempotency provides idempotency checking for operations that
// at-least-once callers may deliver more than once, such as the inventory
// decrement triggered by order webhooks.
package idempotency

import (
	"context"
	"time"
)

// Checker defines the interface for idempotency checking.
type Checker interface {
	// Check checks if an operation was already executed.
	// Returns:
	//   - exists: true if the operation was already executed
	//   - result: the cached result of the operation (if exists is true)
	//   - err: any error that occurred during the check
	Check(ctx context.Context, key string) (exists bool, result []byte, err error)

	// Mark marks an operation as executed with its result.
	// The result is stored with the given TTL.
	Mark(ctx context.Context, key string, result []byte, ttl time.Duration) error
}
