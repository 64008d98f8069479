package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
)

// AvailabilityInput describes one selected cart line checked against live stock.
type AvailabilityInput struct {
	LineKey     string
	ProductID   uuid.UUID
	ProductName string
	Purchasable bool
	Available   int
	Quantity    int
}

// AvailabilityViolation is returned to callers for each line that cannot be ordered.
type AvailabilityViolation struct {
	LineKey      string    `json:"line_key"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Reason       string    `json:"reason"`
	AvailableQty int       `json:"available_qty"`
	RequestedQty int       `json:"requested_qty"`
}

const (
	ReasonUnavailable       = "unavailable"
	ReasonInsufficientStock = "insufficient_stock"
)

// ValidateAvailability fails fast before any stock is touched. It is advisory:
// the conditional decrement remains the authority under concurrency.
func ValidateAvailability(items []AvailabilityInput) error {
	var violations []AvailabilityViolation
	for _, item := range items {
		switch {
		case !item.Purchasable:
			violations = append(violations, AvailabilityViolation{
				LineKey:      item.LineKey,
				ProductID:    item.ProductID,
				ProductName:  item.ProductName,
				Reason:       ReasonUnavailable,
				AvailableQty: 0,
				RequestedQty: item.Quantity,
			})
		case item.Quantity > item.Available:
			violations = append(violations, AvailabilityViolation{
				LineKey:      item.LineKey,
				ProductID:    item.ProductID,
				ProductName:  item.ProductName,
				Reason:       ReasonInsufficientStock,
				AvailableQty: item.Available,
				RequestedQty: item.Quantity,
			})
		}
	}
	if len(violations) == 0 {
		return nil
	}

	msg := fmt.Sprintf("%d item(s) cannot be ordered", len(violations))
	if len(violations) == 1 {
		v := violations[0]
		if v.Reason == ReasonInsufficientStock {
			msg = fmt.Sprintf("insufficient stock for product %s", displayName(v))
		} else {
			msg = fmt.Sprintf("product %s is not available", displayName(v))
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(map[string]any{
		"violations": violations,
	})
}

func displayName(v AvailabilityViolation) string {
	if v.ProductName != "" {
		return v.ProductName
	}
	return v.ProductID.String()
}
