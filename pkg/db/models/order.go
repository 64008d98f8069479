package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// Order is created once at checkout. Status changes go through the lifecycle
// controller, which bumps Version on every write.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;not null;default:'cod'"`
	Currency         enums.Currency      `gorm:"column:currency;not null;default:'VND'"`
	SubTotalCents    int64               `gorm:"column:sub_total_cents;not null"`
	ShippingFeeCents int64               `gorm:"column:shipping_fee_cents;not null;default:0"`
	DiscountCents    int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalAmountCents int64               `gorm:"column:total_amount_cents;not null"`
	Shipping         types.ShippingInfo  `gorm:"embedded;embeddedPrefix:shipping_"`
	Note             *string             `gorm:"column:note"`
	Version          int                 `gorm:"column:version;not null;default:1"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory    []OrderStatusEntry  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// LatestFailureReason returns the note of the most recent failed entry.
func (o *Order) LatestFailureReason() *string {
	var latest *OrderStatusEntry
	for i := range o.StatusHistory {
		entry := &o.StatusHistory[i]
		if entry.Status != enums.OrderStatusFailed {
			continue
		}
		if latest == nil || entry.Seq > latest.Seq {
			latest = entry
		}
	}
	if latest == nil {
		return nil
	}
	return latest.Note
}
