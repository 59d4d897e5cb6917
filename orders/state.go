// Package orders implements order status management: a fixed status state
// machine and the update-order-status workflow.
package orders

import (
	"fmt"

	"shopflow"
)

// Order statuses.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusReturned   = "returned"
	StatusRefunded   = "refunded"
)

// validTransitions defines the allowed status transitions. A status absent
// from a state's slice is rejected before any write.
var validTransitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusReturned, StatusCompleted},
	StatusReturned:   {StatusRefunded},
	StatusRefunded:   {},
	StatusCancelled:  {},
	StatusCompleted:  {},
}

// ValidateTransition returns an error if moving from one status to another is
// not allowed.
func ValidateTransition(from, to string) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown order status %q", shopflow.ErrValidation, from)
	}
	if _, known := validTransitions[to]; !known {
		return fmt.Errorf("%w: unknown order status %q", shopflow.ErrValidation, to)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid status transition from %q to %q", shopflow.ErrValidation, from, to)
}

// IsTerminal returns true if the status has no outgoing transitions.
func IsTerminal(status string) bool {
	allowed, ok := validTransitions[status]
	return ok && len(allowed) == 0
}

// AllowedTransitions returns a copy of the statuses reachable from the given
// status.
func AllowedTransitions(status string) []string {
	allowed, ok := validTransitions[status]
	if !ok {
		return nil
	}
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}
