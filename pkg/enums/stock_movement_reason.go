package enums

import (
	"fmt"
	"strings"
)

// StockMovementReason labels why a stock counter moved.
type StockMovementReason string

const (
	StockMovementCheckout        StockMovementReason = "checkout"
	StockMovementOrderCancelled  StockMovementReason = "order_cancelled"
	StockMovementOrderFailed     StockMovementReason = "order_failed"
	StockMovementAdminAdjustment StockMovementReason = "admin_adjustment"
)

func (r StockMovementReason) String() string {
	return string(r)
}

func (r StockMovementReason) IsValid() bool {
	return r.OrderLinked() || r == StockMovementAdminAdjustment
}

// OrderLinked reports whether a movement with this reason must reference an order.
func (r StockMovementReason) OrderLinked() bool {
	switch r {
	case StockMovementCheckout, StockMovementOrderCancelled, StockMovementOrderFailed:
		return true
	}
	return false
}

// ReleaseReasonFor maps a stock releasing order status to its ledger reason.
func ReleaseReasonFor(status OrderStatus) (StockMovementReason, bool) {
	switch status {
	case OrderStatusCancelled:
		return StockMovementOrderCancelled, true
	case OrderStatusFailed:
		return StockMovementOrderFailed, true
	}
	return "", false
}

func ParseStockMovementReason(value string) (StockMovementReason, error) {
	reason := StockMovementReason(strings.ToLower(strings.TrimSpace(value)))
	if !reason.IsValid() {
		return "", fmt.Errorf("invalid stock movement reason %q", value)
	}
	return reason, nil
}
