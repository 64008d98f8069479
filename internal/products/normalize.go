package product

import (
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
)

// Normalize enforces the derived catalog fields after any variant mutation:
// exactly one default variant (the first when none is flagged), price as the
// cheapest variant, stock as the variant sum and compare-at from the default.
// Products without variants keep their base price and stock.
func Normalize(p *models.Product) {
	if p == nil || len(p.Variants) == 0 {
		return
	}

	defaultIdx := -1
	for i := range p.Variants {
		p.Variants[i].ProductID = p.ID
		p.Variants[i].Position = i
		if p.Variants[i].IsDefault {
			if defaultIdx == -1 {
				defaultIdx = i
			} else {
				p.Variants[i].IsDefault = false
			}
		}
	}
	if defaultIdx == -1 {
		defaultIdx = 0
		p.Variants[0].IsDefault = true
	}

	minPrice := p.Variants[0].PriceCents
	total := 0
	for _, v := range p.Variants {
		if v.PriceCents < minPrice {
			minPrice = v.PriceCents
		}
		total += v.Stock
	}
	p.PriceCents = minPrice
	p.Stock = total

	if cmp := p.Variants[defaultIdx].CompareAtPriceCents; cmp != nil {
		value := *cmp
		p.CompareAtPriceCents = &value
	} else {
		p.CompareAtPriceCents = nil
	}
}
