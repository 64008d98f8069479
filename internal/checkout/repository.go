package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/cart"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
)

// Repository groups the cart, catalog and order stores touched by checkout so
// they can be rebound to one transaction together.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	RemoveLines(ctx context.Context, cartID uuid.UUID, keys []string) error
}

type repository struct {
	carts    *cart.Repository
	products *product.Repository
	orders   orders.Repository
}

// NewRepository builds a checkout repository from the stores it composes.
func NewRepository(carts *cart.Repository, products *product.Repository, ordersRepo orders.Repository) Repository {
	if carts == nil || products == nil || ordersRepo == nil {
		return nil
	}
	return &repository{
		carts:    carts,
		products: products,
		orders:   ordersRepo,
	}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{
		carts:    r.carts.WithTx(tx),
		products: r.products.WithTx(tx),
		orders:   r.orders.WithTx(tx),
	}
}

// FindCart returns the user's cart or nil when the user never added anything.
func (r *repository) FindCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	record, err := r.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	return r.products.FindManyByID(ctx, ids)
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return r.orders.CreateOrder(ctx, order)
}

func (r *repository) RemoveLines(ctx context.Context, cartID uuid.UUID, keys []string) error {
	_, err := r.carts.DeleteItems(ctx, cartID, keys)
	return err
}
