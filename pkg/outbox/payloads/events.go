package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// OrderCreatedEvent signals a committed checkout.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	UserID           uuid.UUID           `json:"user_id"`
	ItemCount        int                 `json:"item_count"`
	TotalQuantity    int                 `json:"total_quantity"`
	TotalAmountCents int64               `json:"total_amount_cents"`
	Currency         enums.Currency      `json:"currency"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
}

// OrderStatusChangedEvent is emitted for every accepted lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	Note          *string             `json:"note,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	StockReleased bool                `json:"stock_released"`
	Version       int                 `json:"version"`
	ChangedAt     time.Time           `json:"changed_at"`
}

// OrderPaymentRecordedEvent reports a manual payment status change.
type OrderPaymentRecordedEvent struct {
	OrderID uuid.UUID           `json:"order_id"`
	From    enums.PaymentStatus `json:"from"`
	To      enums.PaymentStatus `json:"to"`
}

// ProductStockAdjustedEvent reports a back-office stock override.
type ProductStockAdjustedEvent struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	Delta          int        `json:"delta"`
	VariantStock   *int       `json:"variant_stock,omitempty"`
	AggregateStock int        `json:"aggregate_stock"`
}

// ProductCatalogChangedEvent lets search and cache layers refresh a listing.
type ProductCatalogChangedEvent struct {
	ProductID  uuid.UUID `json:"product_id"`
	Change     string    `json:"change"`
	IsApproved bool      `json:"is_approved"`
	IsActive   bool      `json:"is_active"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
}
