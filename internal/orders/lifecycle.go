package orders

import (
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// transitions is the order state machine. Terminal statuses have no entry.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusFailed},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered, enums.OrderStatusFailed},
}

// CanTransition reports whether from -> to is a legal edge. A status never
// transitions to itself; callers treat that case as a no-op.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedTargets lists the statuses reachable from the given one.
func AllowedTargets(from enums.OrderStatus) []enums.OrderStatus {
	return append([]enums.OrderStatus(nil), transitions[from]...)
}

// releaseReason falls back to a cancellation for non-releasing statuses.
func releaseReason(status enums.OrderStatus) enums.StockMovementReason {
	if reason, ok := enums.ReleaseReasonFor(status); ok {
		return reason
	}
	return enums.StockMovementOrderCancelled
}
