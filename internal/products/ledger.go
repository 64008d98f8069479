package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
)

// StockChange identifies the counter to move and the audit context of the move.
type StockChange struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	ProductName string
	Qty         int
	Reason      enums.StockMovementReason
	OrderID     *uuid.UUID
	ActorID     *uuid.UUID
}

// StockLevel is the state of the counters after an override.
type StockLevel struct {
	VariantStock   *int
	AggregateStock int
	AppliedDelta   int
}

// StockLedger mutates product and variant stock. Every method runs on the
// caller's transaction.
type StockLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, change StockChange) error
	Credit(ctx context.Context, tx *gorm.DB, change StockChange) (bool, error)
	AddSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	SubtractSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Adjust(ctx context.Context, tx *gorm.DB, change StockChange, delta int) (*StockLevel, error)
	Set(ctx context.Context, tx *gorm.DB, change StockChange, stock int) (*StockLevel, error)
}

type ledger struct{}

// NewLedger returns the SQL backed stock ledger.
func NewLedger() StockLedger {
	return ledger{}
}

// Decrement removes qty units with conditional updates so stock never goes
// below zero, even when two checkouts race for the last unit.
func (ledger) Decrement(ctx context.Context, tx *gorm.DB, change StockChange) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}
	if change.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	db := tx.WithContext(ctx)

	if change.VariantID != nil {
		res := db.Exec(`
			UPDATE product_variants
			SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND product_id = ? AND stock >= ?
		`, change.Qty, *change.VariantID, change.ProductID, change.Qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement variant stock")
		}
		if res.RowsAffected == 0 {
			return insufficientStock(change)
		}
	}

	res := db.Exec(`
		UPDATE products
		SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, change.Qty, change.ProductID, change.Qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement product stock")
	}
	if res.RowsAffected == 0 {
		return insufficientStock(change)
	}

	return recordMovement(db, change, -change.Qty)
}

// Credit returns units to stock. Order items reference products weakly, so a
// product or variant that no longer exists is skipped and reported as false.
func (ledger) Credit(ctx context.Context, tx *gorm.DB, change StockChange) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock credit")
	}
	if change.Qty <= 0 {
		return false, nil
	}
	db := tx.WithContext(ctx)

	if change.VariantID != nil {
		res := db.Exec(`
			UPDATE product_variants
			SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND product_id = ?
		`, change.Qty, *change.VariantID, change.ProductID)
		if res.Error != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "credit variant stock")
		}
		if res.RowsAffected == 0 {
			return false, nil
		}
	}

	res := db.Exec(`
		UPDATE products
		SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, change.Qty, change.ProductID)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "credit product stock")
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := recordMovement(db, change, change.Qty); err != nil {
		return false, err
	}
	return true, nil
}

func (ledger) AddSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for sold counter")
	}
	if err := tx.WithContext(ctx).Exec(
		`UPDATE products SET sold = sold + ? WHERE id = ?`, qty, productID,
	).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment sold counter")
	}
	return nil
}

// SubtractSold lowers the sold counter, floored at zero.
func (ledger) SubtractSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for sold counter")
	}
	if err := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET sold = CASE WHEN sold >= ? THEN sold - ? ELSE 0 END
		WHERE id = ?
	`, qty, qty, productID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement sold counter")
	}
	return nil
}

// Adjust applies a signed delta floored at zero.
func (l ledger) Adjust(ctx context.Context, tx *gorm.DB, change StockChange, delta int) (*StockLevel, error) {
	return l.override(ctx, tx, change, func(column string) (string, []any) {
		return fmt.Sprintf("CASE WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", column), []any{delta, delta}
	})
}

// Set replaces the counter with an absolute value.
func (l ledger) Set(ctx context.Context, tx *gorm.DB, change StockChange, stock int) (*StockLevel, error) {
	if stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be >= 0")
	}
	return l.override(ctx, tx, change, func(string) (string, []any) {
		return "?", []any{stock}
	})
}

// override runs a back-office stock write. When variants exist the aggregate is
// re-derived from their sum so the catalog invariant holds after the write.
func (ledger) override(ctx context.Context, tx *gorm.DB, change StockChange, expr func(column string) (string, []any)) (*StockLevel, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock override")
	}
	db := tx.WithContext(ctx)

	var product models.Product
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "stock").
		First(&product, "id = ?", change.ProductID).Error; err != nil {
		return nil, pkgerrors.Lookup(err, "product")
	}

	var variantCount int64
	if err := db.Model(&models.ProductVariant{}).Where("product_id = ?", change.ProductID).Count(&variantCount).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count variants")
	}

	level := &StockLevel{}
	if change.VariantID == nil {
		if variantCount > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required for products with variants")
		}
		sqlExpr, args := expr("stock")
		args = append(args, change.ProductID)
		if err := db.Exec(
			"UPDATE products SET stock = "+sqlExpr+", updated_at = CURRENT_TIMESTAMP WHERE id = ?", args...,
		).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "override product stock")
		}
		var after int
		if err := db.Raw("SELECT stock FROM products WHERE id = ?", change.ProductID).Scan(&after).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read product stock")
		}
		level.AggregateStock = after
		level.AppliedDelta = after - product.Stock
	} else {
		var variant models.ProductVariant
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "stock").
			First(&variant, "id = ? AND product_id = ?", *change.VariantID, change.ProductID).Error; err != nil {
			return nil, pkgerrors.Lookup(err, "variant")
		}
		sqlExpr, args := expr("stock")
		args = append(args, variant.ID)
		if err := db.Exec(
			"UPDATE product_variants SET stock = "+sqlExpr+", updated_at = CURRENT_TIMESTAMP WHERE id = ?", args...,
		).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "override variant stock")
		}
		aggregate, err := recomputeAggregate(db, change.ProductID)
		if err != nil {
			return nil, err
		}
		var after int
		if err := db.Raw("SELECT stock FROM product_variants WHERE id = ?", variant.ID).Scan(&after).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read variant stock")
		}
		level.VariantStock = &after
		level.AggregateStock = aggregate
		level.AppliedDelta = after - variant.Stock
	}

	if level.AppliedDelta != 0 {
		if err := recordMovement(db, change, level.AppliedDelta); err != nil {
			return nil, err
		}
	}
	return level, nil
}

func recomputeAggregate(db *gorm.DB, productID uuid.UUID) (int, error) {
	if err := db.Exec(`
		UPDATE products
		SET stock = (SELECT COALESCE(SUM(v.stock), 0) FROM product_variants v WHERE v.product_id = ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, productID, productID).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute product stock")
	}
	var stock int
	if err := db.Raw("SELECT stock FROM products WHERE id = ?", productID).Scan(&stock).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read product stock")
	}
	return stock, nil
}

func recordMovement(db *gorm.DB, change StockChange, delta int) error {
	reason := change.Reason
	if !reason.IsValid() {
		reason = enums.StockMovementAdminAdjustment
	}
	if reason.OrderLinked() && change.OrderID == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("%s stock movement requires an order", reason))
	}
	row := models.StockMovement{
		ID:          uuid.New(),
		ProductID:   change.ProductID,
		VariantID:   change.VariantID,
		Delta:       delta,
		Reason:      reason,
		OrderID:     change.OrderID,
		ActorUserID: change.ActorID,
	}
	if err := db.Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
	}
	return nil
}

func insufficientStock(change StockChange) error {
	name := change.ProductName
	if name == "" {
		name = change.ProductID.String()
	}
	details := map[string]any{"product_id": change.ProductID, "requested_qty": change.Qty}
	if change.VariantID != nil {
		details["variant_id"] = *change.VariantID
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "insufficient stock for product %s", name).WithDetails(details)
}
