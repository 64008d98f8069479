package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/pagination"
)

// Repository defines persistence operations for orders, their items and status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateVersioned(ctx context.Context, orderID uuid.UUID, expectedVersion int, updates map[string]any) (int64, error)
	AppendStatusEntry(ctx context.Context, entry *models.OrderStatusEntry) error
	ListOrders(ctx context.Context, filters OrderFilters, params pagination.Params) ([]models.Order, string, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// OrderFilters narrow order listings. Empty fields match everything.
type OrderFilters struct {
	UserID        *uuid.UUID
	Statuses      []enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	Query         string
	// WithHistory preloads status entries so failure reasons can be derived.
	WithHistory bool
}
