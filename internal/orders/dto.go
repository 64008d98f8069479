package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/money"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// OrderDTO is the order detail payload.
type OrderDTO struct {
	ID                 uuid.UUID           `json:"id"`
	UserID             uuid.UUID           `json:"user_id"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	SubTotal           money.Amount        `json:"sub_total"`
	ShippingFee        money.Amount        `json:"shipping_fee"`
	Discount           money.Amount        `json:"discount"`
	TotalAmount        money.Amount        `json:"total_amount"`
	Shipping           types.ShippingInfo  `json:"shipping"`
	Note               *string             `json:"note,omitempty"`
	Version            int                 `json:"version"`
	Items              []OrderItemDTO      `json:"items"`
	StatusHistory      []StatusEntryDTO    `json:"status_history"`
	FailureReason      *string             `json:"failure_reason,omitempty"`
	AllowedTransitions []enums.OrderStatus `json:"allowed_transitions"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// OrderItemDTO is a line snapshot.
type OrderItemDTO struct {
	ID        uuid.UUID    `json:"id"`
	ProductID uuid.UUID    `json:"product_id"`
	VariantID *uuid.UUID   `json:"variant_id,omitempty"`
	Name      string       `json:"name"`
	SKU       *string      `json:"sku,omitempty"`
	UnitPrice money.Amount `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	LineTotal money.Amount `json:"line_total"`
}

// StatusEntryDTO is one audit row.
type StatusEntryDTO struct {
	Seq       int               `json:"seq"`
	Status    enums.OrderStatus `json:"status"`
	ActorID   *uuid.UUID        `json:"actor_id,omitempty"`
	ActorRole *enums.Role       `json:"actor_role,omitempty"`
	Note      *string           `json:"note,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// OrderSummaryDTO is the list row.
type OrderSummaryDTO struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	TotalAmount      money.Amount        `json:"total_amount"`
	TotalItems       int                 `json:"total_items"`
	ShippingFullName string              `json:"shipping_full_name"`
	FailureReason    *string             `json:"failure_reason,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderListResult wraps a page of orders plus the next cursor.
type OrderListResult struct {
	Orders     []OrderSummaryDTO `json:"orders"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func newOrderDTO(order *models.Order) OrderDTO {
	currency := order.Currency
	dto := OrderDTO{
		ID:                 order.ID,
		UserID:             order.UserID,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		PaymentMethod:      order.PaymentMethod,
		SubTotal:           money.New(order.SubTotalCents, currency),
		ShippingFee:        money.New(order.ShippingFeeCents, currency),
		Discount:           money.New(order.DiscountCents, currency),
		TotalAmount:        money.New(order.TotalAmountCents, currency),
		Shipping:           order.Shipping,
		Note:               order.Note,
		Version:            order.Version,
		Items:              make([]OrderItemDTO, 0, len(order.Items)),
		StatusHistory:      make([]StatusEntryDTO, 0, len(order.StatusHistory)),
		FailureReason:      order.LatestFailureReason(),
		AllowedTransitions: AllowedTargets(order.Status),
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: money.New(item.UnitPriceCents, currency),
			Quantity:  item.Quantity,
			LineTotal: money.New(item.LineTotalCents, currency),
		})
	}
	for _, entry := range order.StatusHistory {
		dto.StatusHistory = append(dto.StatusHistory, StatusEntryDTO{
			Seq:       entry.Seq,
			Status:    entry.Status,
			ActorID:   entry.ActorID,
			ActorRole: entry.ActorRole,
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}
	return dto
}

func newOrderSummaryDTO(order *models.Order) OrderSummaryDTO {
	totalItems := 0
	for _, item := range order.Items {
		totalItems += item.Quantity
	}
	return OrderSummaryDTO{
		ID:               order.ID,
		UserID:           order.UserID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		TotalAmount:      money.New(order.TotalAmountCents, order.Currency),
		TotalItems:       totalItems,
		ShippingFullName: order.Shipping.FullName,
		FailureReason:    order.LatestFailureReason(),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

// NewOrderDTO exposes the detail mapping to sibling packages that create orders.
func NewOrderDTO(order *models.Order) OrderDTO {
	return newOrderDTO(order)
}
