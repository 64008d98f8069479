package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/money"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// ProductDTO represents the catalog payload returned to clients.
type ProductDTO struct {
	ID             uuid.UUID     `json:"id"`
	OwnerID        *uuid.UUID    `json:"owner_id,omitempty"`
	Name           string        `json:"name"`
	Brand          *string       `json:"brand,omitempty"`
	Category       string        `json:"category"`
	Description    *string       `json:"description,omitempty"`
	Price          money.Amount  `json:"price"`
	CompareAtPrice *money.Amount `json:"compare_at_price,omitempty"`
	Stock          int           `json:"stock"`
	Sold           int           `json:"sold"`
	IsApproved     bool          `json:"is_approved"`
	IsActive       bool          `json:"is_active"`
	Variants       []VariantDTO  `json:"variants"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// VariantDTO exposes a purchasable SKU.
type VariantDTO struct {
	ID             uuid.UUID               `json:"id"`
	SKU            *string                 `json:"sku,omitempty"`
	Price          money.Amount            `json:"price"`
	CompareAtPrice *money.Amount           `json:"compare_at_price,omitempty"`
	Stock          int                     `json:"stock"`
	Attributes     types.VariantAttributes `json:"attributes"`
	IsDefault      bool                    `json:"is_default"`
}

// ProductListResult is a cursor page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// StockMovementDTO is one ledger audit row.
type StockMovementDTO struct {
	ID          uuid.UUID                 `json:"id"`
	VariantID   *uuid.UUID                `json:"variant_id,omitempty"`
	Delta       int                       `json:"delta"`
	Reason      enums.StockMovementReason `json:"reason"`
	OrderID     *uuid.UUID                `json:"order_id,omitempty"`
	ActorUserID *uuid.UUID                `json:"actor_user_id,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// StockMovementListResult is a cursor page of ledger rows.
type StockMovementListResult struct {
	Movements  []StockMovementDTO `json:"movements"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// StockLevelDTO is returned by the admin stock override.
type StockLevelDTO struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	VariantStock   *int       `json:"variant_stock,omitempty"`
	AggregateStock int        `json:"stock"`
	AppliedDelta   int        `json:"applied_delta"`
}

func newProductDTO(p *models.Product, currency enums.Currency) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Description: p.Description,
		Price:       money.New(p.PriceCents, currency),
		Stock:       p.Stock,
		Sold:        p.Sold,
		IsApproved:  p.IsApproved,
		IsActive:    p.IsActive,
		Variants:    make([]VariantDTO, 0, len(p.Variants)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.CompareAtPriceCents != nil {
		cmp := money.New(*p.CompareAtPriceCents, currency)
		dto.CompareAtPrice = &cmp
	}
	for _, v := range p.Variants {
		vd := VariantDTO{
			ID:         v.ID,
			SKU:        v.SKU,
			Price:      money.New(v.PriceCents, currency),
			Stock:      v.Stock,
			Attributes: v.Attributes,
			IsDefault:  v.IsDefault,
		}
		if v.CompareAtPriceCents != nil {
			cmp := money.New(*v.CompareAtPriceCents, currency)
			vd.CompareAtPrice = &cmp
		}
		if vd.Attributes == nil {
			vd.Attributes = types.VariantAttributes{}
		}
		dto.Variants = append(dto.Variants, vd)
	}
	return dto
}

func newStockMovementDTO(m models.StockMovement) StockMovementDTO {
	return StockMovementDTO{
		ID:          m.ID,
		VariantID:   m.VariantID,
		Delta:       m.Delta,
		Reason:      m.Reason,
		OrderID:     m.OrderID,
		ActorUserID: m.ActorUserID,
		CreatedAt:   m.CreatedAt,
	}
}
