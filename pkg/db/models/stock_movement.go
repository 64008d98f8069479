package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// StockMovement audits every stock ledger mutation.
type StockMovement struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	VariantID   *uuid.UUID                `gorm:"column:variant_id;type:uuid"`
	Delta       int                       `gorm:"column:delta;not null"`
	Reason      enums.StockMovementReason `gorm:"column:reason;not null"`
	OrderID     *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	ActorUserID *uuid.UUID                `gorm:"column:actor_user_id;type:uuid"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
