package cart

import (
	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// LiveLine is the current catalog view of a cart line.
type LiveLine struct {
	Status     enums.CartItemStatus
	Name       string
	SKU        *string
	PriceCents int64
	Available  int
}

// ResolveLive prices a (product, variant) pair against the live catalog.
// A nil product means it no longer exists. Lines without a variant on a
// product that now has variants are unavailable, since stock lives on the
// variants.
func ResolveLive(product *models.Product, variantID *uuid.UUID, quantity int) LiveLine {
	if product == nil {
		return LiveLine{Status: enums.CartItemStatusUnavailable}
	}
	line := LiveLine{Name: product.Name}
	if !product.Purchasable() {
		line.Status = enums.CartItemStatusUnavailable
		return line
	}
	switch {
	case variantID != nil:
		variant := product.VariantByID(*variantID)
		if variant == nil {
			line.Status = enums.CartItemStatusUnavailable
			return line
		}
		line.SKU = variant.SKU
		line.PriceCents = variant.PriceCents
		line.Available = variant.Stock
	case len(product.Variants) > 0:
		line.Status = enums.CartItemStatusUnavailable
		return line
	default:
		line.PriceCents = product.PriceCents
		line.Available = product.Stock
	}
	if quantity > line.Available {
		line.Status = enums.CartItemStatusInsufficientStock
		return line
	}
	line.Status = enums.CartItemStatusOK
	return line
}
