package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one (product, variant) line. LineKey is unique per cart.
type CartItem struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID     uuid.UUID  `gorm:"column:cart_id;type:uuid;not null"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID  *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	LineKey    string     `gorm:"column:line_key;not null"`
	Quantity   int        `gorm:"column:quantity;not null"`
	Name       string     `gorm:"column:name;not null"`
	SKU        *string    `gorm:"column:sku"`
	PriceCents int64      `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
