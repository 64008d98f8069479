package product

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
)

type seedVariant struct {
	price int64
	stock int
}

func seedProduct(t *testing.T, conn *gorm.DB, name string, stock int, variants ...seedVariant) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		Category:   "apparel",
		PriceCents: 10000,
		Stock:      stock,
		IsApproved: true,
		IsActive:   true,
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, models.ProductVariant{ID: uuid.New(), PriceCents: v.price, Stock: v.stock})
	}
	Normalize(p)
	if err := conn.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func productStock(t *testing.T, conn *gorm.DB, id uuid.UUID) (stock, sold int) {
	t.Helper()
	var row models.Product
	if err := conn.Select("stock", "sold").First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return row.Stock, row.Sold
}

func variantStock(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var row models.ProductVariant
	if err := conn.Select("stock").First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return row.Stock
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
