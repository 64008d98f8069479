package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/pagination"
)

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product with its variants ordered by position.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate loads the product with variants and locks the product row.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", id).
		Order("position ASC").
		Find(&product.Variants).
		Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindManyByID loads products with variants keyed by id; missing ids are absent from the map.
func (r *Repository) FindManyByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id IN ?", ids).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// CreateProduct inserts the product and its variants.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	for i := range product.Variants {
		if product.Variants[i].ID == uuid.Nil {
			product.Variants[i].ID = uuid.New()
		}
		product.Variants[i].ProductID = product.ID
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct writes the descriptive product columns. Stock and sold are
// owned by the ledger and never written here.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":                   product.Name,
			"brand":                  product.Brand,
			"category":               product.Category,
			"description":            product.Description,
			"price_cents":            product.PriceCents,
			"compare_at_price_cents": product.CompareAtPriceCents,
			"is_active":              product.IsActive,
			"updated_at":             gorm.Expr("CURRENT_TIMESTAMP"),
		}).
		Error
}

// SyncVariants upserts the given variants and deletes the ones no longer listed.
// Existing ids are kept stable because carts and orders reference them. Stock of
// an existing variant only moves through the ledger; new variants start with
// the provided stock.
func (r *Repository) SyncVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	db := r.db.WithContext(ctx)
	keep := make([]uuid.UUID, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		v.ProductID = productID
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
			if err := db.Create(v).Error; err != nil {
				return err
			}
		} else {
			res := db.Model(&models.ProductVariant{}).
				Where("id = ? AND product_id = ?", v.ID, productID).
				Updates(map[string]any{
					"sku":                    v.SKU,
					"price_cents":            v.PriceCents,
					"compare_at_price_cents": v.CompareAtPriceCents,
					"attributes":             v.Attributes,
					"is_default":             v.IsDefault,
					"position":               v.Position,
					"updated_at":             gorm.Expr("CURRENT_TIMESTAMP"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		keep = append(keep, v.ID)
	}

	q := db.Where("product_id = ?", productID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(&models.ProductVariant{}).Error
}

// UpdateFlags sets the soft visibility flags.
func (r *Repository) UpdateFlags(ctx context.Context, productID uuid.UUID, fields map[string]any) (int64, error) {
	fields["updated_at"] = gorm.Expr("CURRENT_TIMESTAMP")
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Updates(fields)
	return res.RowsAffected, res.Error
}

type productListQuery struct {
	Pagination   pagination.Params
	Filters      ProductListFilters
	IncludeDraft bool
}

// ListProducts pages through products newest first.
func (r *Repository) ListProducts(ctx context.Context, query productListQuery) ([]models.Product, string, error) {
	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.Product{})
	if !query.IncludeDraft {
		qb = qb.Where("is_approved = ? AND is_active = ?", true, true)
	}

	filter := query.Filters
	if category := strings.TrimSpace(filter.Category); category != "" {
		qb = qb.Where("category = ?", category)
	}
	if brand := strings.TrimSpace(filter.Brand); brand != "" {
		qb = qb.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}
	if filter.PriceMinCents != nil {
		qb = qb.Where("price_cents >= ?", *filter.PriceMinCents)
	}
	if filter.PriceMaxCents != nil {
		qb = qb.Where("price_cents <= ?", *filter.PriceMaxCents)
	}
	if filter.InStock != nil && *filter.InStock {
		qb = qb.Where("stock > 0")
	}
	if filter.OwnerID != nil {
		qb = qb.Where("owner_id = ?", *filter.OwnerID)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(COALESCE(brand, '')) LIKE ?)", pattern, pattern)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	err = qb.
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(query.Pagination.Limit)).
		Find(&rows).
		Error
	if err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, query.Pagination.Limit, productCursor)
	return rows, next, nil
}

// ListStockMovements returns the ledger audit for a product, newest first.
func (r *Repository) ListStockMovements(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.StockMovement, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.StockMovement
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, params.Limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return rows, next, nil
}

func productCursor(p models.Product) pagination.Cursor {
	return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}
