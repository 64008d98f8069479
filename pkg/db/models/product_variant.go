package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// ProductVariant is a purchasable SKU of a product.
type ProductVariant struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID           uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	SKU                 *string                 `gorm:"column:sku"`
	PriceCents          int64                   `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64                  `gorm:"column:compare_at_price_cents"`
	Stock               int                     `gorm:"column:stock;not null;default:0"`
	Attributes          types.VariantAttributes `gorm:"column:attributes;type:jsonb"`
	IsDefault           bool                    `gorm:"column:is_default;not null;default:false"`
	Position            int                     `gorm:"column:position;not null;default:0"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
