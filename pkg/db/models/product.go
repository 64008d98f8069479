package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog aggregate root. Price and stock are derived from
// variants whenever variants exist; see products.Normalize.
type Product struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID             *uuid.UUID       `gorm:"column:owner_id;type:uuid"`
	Name                string           `gorm:"column:name;not null"`
	Brand               *string          `gorm:"column:brand"`
	Category            string           `gorm:"column:category;not null"`
	Description         *string          `gorm:"column:description"`
	PriceCents          int64            `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64           `gorm:"column:compare_at_price_cents"`
	Stock               int              `gorm:"column:stock;not null;default:0"`
	Sold                int              `gorm:"column:sold;not null;default:0"`
	IsApproved          bool             `gorm:"column:is_approved;not null;default:false"`
	IsActive            bool             `gorm:"column:is_active;not null"`
	Variants            []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable reports whether shoppers may add or buy the product.
func (p *Product) Purchasable() bool {
	return p != nil && p.IsApproved && p.IsActive
}

// VariantByID returns the variant with the given id, or nil.
func (p *Product) VariantByID(id uuid.UUID) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// DefaultVariant returns the variant flagged as default, or nil when the product has none.
func (p *Product) DefaultVariant() *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].IsDefault {
			return &p.Variants[i]
		}
	}
	return nil
}
