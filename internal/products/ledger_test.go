package product

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/dbtest"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
)

func TestLedgerDecrementVariantAndAggregate(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Tee", 0, seedVariant{price: 20000, stock: 3}, seedVariant{price: 25000, stock: 4})
	variantID := p.Variants[1].ID
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return NewLedger().Decrement(ctx, tx, StockChange{ProductID: p.ID, VariantID: &variantID, Qty: 3, Reason: enums.StockMovementCheckout, OrderID: orderRef()})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, variantStock(t, conn, variantID))
	stock, _ := productStock(t, conn, p.ID)
	assert.Equal(t, 4, stock)

	var movements []models.StockMovement
	require.NoError(t, conn.Find(&movements, "product_id = ?", p.ID).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, -3, movements[0].Delta)
	assert.Equal(t, enums.StockMovementCheckout, movements[0].Reason)
}

func TestLedgerDecrementInsufficientStockLeavesCountersUntouched(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Cap", 0, seedVariant{price: 5000, stock: 1})
	variantID := p.Variants[0].ID

	err := conn.Transaction(func(tx *gorm.DB) error {
		return NewLedger().Decrement(context.Background(), tx, StockChange{ProductID: p.ID, VariantID: &variantID, ProductName: "Cap", Qty: 2})
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, "insufficient stock for product Cap", typed.Message())

	assert.Equal(t, 1, variantStock(t, conn, variantID))
	stock, _ := productStock(t, conn, p.ID)
	assert.Equal(t, 1, stock)
}

func TestLedgerConcurrentDecrementsNeverOversell(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	p := seedProduct(t, conn, "Last Units", 5)
	ledger := NewLedger()

	var succeeded, conflicted int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
				return ledger.Decrement(context.Background(), tx, StockChange{ProductID: p.ID, Qty: 1, Reason: enums.StockMovementCheckout, OrderID: orderRef()})
			})
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
				atomic.AddInt32(&conflicted, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, succeeded)
	assert.EqualValues(t, 7, conflicted)
	stock, _ := productStock(t, conn, p.ID)
	assert.Equal(t, 0, stock)
}

func TestLedgerRejectsOrderReasonWithoutOrder(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Scarf", 4)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return NewLedger().Decrement(context.Background(), tx, StockChange{ProductID: p.ID, Qty: 1, Reason: enums.StockMovementCheckout})
	})
	require.Error(t, err)
	stock, _ := productStock(t, conn, p.ID)
	assert.Equal(t, 4, stock)
}

func TestLedgerCreditSkipsMissingProduct(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Sock", 2)

	var creditedExisting, creditedMissing bool
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		creditedExisting, err = NewLedger().Credit(context.Background(), tx, StockChange{ProductID: p.ID, Qty: 3, Reason: enums.StockMovementOrderCancelled, OrderID: orderRef()})
		if err != nil {
			return err
		}
		creditedMissing, err = NewLedger().Credit(context.Background(), tx, StockChange{ProductID: uuid.New(), Qty: 1, Reason: enums.StockMovementOrderCancelled, OrderID: orderRef()})
		return err
	})
	require.NoError(t, err)
	assert.True(t, creditedExisting)
	assert.False(t, creditedMissing)
	stock, _ := productStock(t, conn, p.ID)
	assert.Equal(t, 5, stock)
}

func TestLedgerSoldCounterFlooredAtZero(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Belt", 2)
	ledger := NewLedger()
	ctx := context.Background()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := ledger.AddSold(ctx, tx, p.ID, 2); err != nil {
			return err
		}
		return ledger.SubtractSold(ctx, tx, p.ID, 5)
	}))
	_, sold := productStock(t, conn, p.ID)
	assert.Equal(t, 0, sold)
}

func TestLedgerAdjustFloorsAndRecomputesAggregate(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Jacket", 0, seedVariant{price: 90000, stock: 2}, seedVariant{price: 95000, stock: 6})
	first := p.Variants[0].ID
	ledger := NewLedger()
	ctx := context.Background()

	var level *StockLevel
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		level, err = ledger.Adjust(ctx, tx, StockChange{ProductID: p.ID, VariantID: &first}, -10)
		return err
	}))
	require.NotNil(t, level.VariantStock)
	assert.Equal(t, 0, *level.VariantStock)
	assert.Equal(t, 6, level.AggregateStock)
	assert.Equal(t, -2, level.AppliedDelta)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		level, err = ledger.Set(ctx, tx, StockChange{ProductID: p.ID, VariantID: &first}, 11)
		return err
	}))
	assert.Equal(t, 17, level.AggregateStock)
	stock, _ := productStock(t, conn, p.ID)
	assert.Equal(t, 17, stock)
}

func TestLedgerAdjustRequiresVariantWhenVariantsExist(t *testing.T) {
	t.Parallel()

	conn := dbtest.Open(t)
	p := seedProduct(t, conn, "Scarf", 0, seedVariant{price: 1000, stock: 1})

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := NewLedger().Adjust(context.Background(), tx, StockChange{ProductID: p.ID}, 3)
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func orderRef() *uuid.UUID {
	id := uuid.New()
	return &id
}
