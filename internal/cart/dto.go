package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/money"
)

// CartDTO is the cart payload returned to the owner.
type CartDTO struct {
	ID        *uuid.UUID    `json:"id,omitempty"`
	Items     []CartItemDTO `json:"items"`
	Summary   Summary       `json:"summary"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

// CartItemDTO is one cart line. Status and Available are only set on live reads.
type CartItemDTO struct {
	Key       string               `json:"key"`
	ProductID uuid.UUID            `json:"product_id"`
	VariantID *uuid.UUID           `json:"variant_id,omitempty"`
	Name      string               `json:"name"`
	SKU       *string              `json:"sku,omitempty"`
	Quantity  int                  `json:"quantity"`
	UnitPrice money.Amount         `json:"unit_price"`
	LineTotal money.Amount         `json:"line_total"`
	Status    enums.CartItemStatus `json:"status,omitempty"`
	Available *int                 `json:"available,omitempty"`
}

// Summary totals the cart. With Live set the estimate uses current catalog
// prices and skips unavailable lines.
type Summary struct {
	TotalQuantity  int          `json:"total_quantity"`
	EstimatedTotal money.Amount `json:"estimated_total"`
	Live           bool         `json:"live"`
}

func emptyCartDTO(currency enums.Currency, live bool) *CartDTO {
	return &CartDTO{
		Items:   []CartItemDTO{},
		Summary: Summary{EstimatedTotal: money.New(0, currency), Live: live},
	}
}

func snapshotItemDTO(item models.CartItem, currency enums.Currency) CartItemDTO {
	return CartItemDTO{
		Key:       item.LineKey,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Name:      item.Name,
		SKU:       item.SKU,
		Quantity:  item.Quantity,
		UnitPrice: money.New(item.PriceCents, currency),
		LineTotal: money.New(item.PriceCents*int64(item.Quantity), currency),
	}
}
