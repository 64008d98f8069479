package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// EnsureCart returns the user's cart, creating it on first use. Concurrent
// first adds race on the unique user_id and both end up with the same row.
func (r *Repository) EnsureCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	candidate := models.Cart{ID: uuid.New(), UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&candidate).
		Error; err != nil {
		return nil, err
	}
	var cart models.Cart
	if err := r.db.WithContext(ctx).First(&cart, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByUser loads the user's cart with its lines.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&cart, "user_id = ?", userID).
		Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertItem inserts the line or, when the key already exists in the cart,
// adds item.Quantity to the stored quantity and refreshes the snapshot.
func (r *Repository) UpsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "line_key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":    gorm.Expr("cart_items.quantity + ?", item.Quantity),
				"name":        item.Name,
				"sku":         item.SKU,
				"price_cents": item.PriceCents,
				"updated_at":  time.Now().UTC(),
			}),
		}).
		Create(item).
		Error
	if err != nil {
		return nil, err
	}
	return r.FindItem(ctx, item.CartID, item.LineKey)
}

// FindItem loads one line by key.
func (r *Repository) FindItem(ctx context.Context, cartID uuid.UUID, key string) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		First(&item, "cart_id = ? AND line_key = ?", cartID, key).
		Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// SetQuantity overwrites a line quantity. Zero rows means the key is absent.
func (r *Repository) SetQuantity(ctx context.Context, cartID uuid.UUID, key string, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND line_key = ?", cartID, key).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// DeleteItems removes the listed lines and returns how many were deleted.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND line_key IN ?", cartID, keys).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// ClearItems removes every line of the cart. The cart row itself is kept.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).
		Error
}
