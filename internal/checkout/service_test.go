package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/cart"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/dbtest"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

var testPricing = config.CheckoutConfig{FlatShippingFeeCents: 3000, FreeShippingThresholdCts: 100000}

func newTestService(t *testing.T, ledger product.StockLedger) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	if ledger == nil {
		ledger = product.NewLedger()
	}
	svc, err := NewService(
		NewRepository(cart.NewRepository(conn), product.NewRepository(conn), orders.NewRepository(conn)),
		db.NewFromConn(conn),
		ledger,
		outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		testPricing,
		enums.CurrencyVND,
		metrics.NewOrderMetrics(prometheus.NewRegistry()),
		logger.Nop(),
	)
	require.NoError(t, err)
	return svc, conn
}

func seedProduct(t *testing.T, conn *gorm.DB, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		Category:   "home",
		PriceCents: price,
		Stock:      stock,
		IsApproved: true,
		IsActive:   true,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func seedVariantProduct(t *testing.T, conn *gorm.DB, name string, prices []int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{ID: uuid.New(), Name: name, Category: "home", IsApproved: true, IsActive: true}
	for i, price := range prices {
		sku := name + "-" + string(rune('A'+i))
		p.Variants = append(p.Variants, models.ProductVariant{ID: uuid.New(), SKU: &sku, PriceCents: price, Stock: stock})
	}
	product.Normalize(p)
	require.NoError(t, conn.Create(p).Error)
	return p
}

// putInCart stores a line with a stale snapshot price so tests can tell live pricing apart.
func putInCart(t *testing.T, conn *gorm.DB, userID uuid.UUID, p *models.Product, variant *models.ProductVariant, qty int) string {
	t.Helper()
	repo := cart.NewRepository(conn)
	record, err := repo.EnsureCart(context.Background(), userID)
	require.NoError(t, err)
	var variantID *uuid.UUID
	if variant != nil {
		id := variant.ID
		variantID = &id
	}
	key := cart.LineKey(p.ID, variantID)
	_, err = repo.UpsertItem(context.Background(), &models.CartItem{
		CartID:     record.ID,
		ProductID:  p.ID,
		VariantID:  variantID,
		LineKey:    key,
		Quantity:   qty,
		Name:       p.Name,
		PriceCents: 1,
	})
	require.NoError(t, err)
	return key
}

func validInput(userID uuid.UUID) CreateOrderInput {
	return CreateOrderInput{
		UserID: userID,
		Shipping: types.ShippingInfo{
			FullName:    " Tran Thi B ",
			Phone:       "0987654321",
			Email:       "B@Example.com",
			AddressLine: "45 Hai Ba Trung",
			City:        "Ha Noi",
		},
		PaymentMethod: enums.PaymentMethodCOD,
	}
}

func stockOf(t *testing.T, conn *gorm.DB, productID uuid.UUID) (stock, sold int) {
	t.Helper()
	var row models.Product
	require.NoError(t, conn.First(&row, "id = ?", productID).Error)
	return row.Stock, row.Sold
}

func count(t *testing.T, conn *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestCreateOrderCommitsEverything(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	mug := seedVariantProduct(t, conn, "Mug", []int64{4000, 4500}, 3)
	putInCart(t, conn, userID, lamp, nil, 2)
	putInCart(t, conn, userID, mug, &mug.Variants[1], 3)

	dto, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, dto.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, dto.PaymentStatus)
	assert.Equal(t, 1, dto.Version)
	assert.Equal(t, "Tran Thi B", dto.Shipping.FullName)
	assert.Equal(t, "b@example.com", dto.Shipping.Email)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, int64(2*12000+3*4500), dto.SubTotal.Cents)
	assert.Equal(t, int64(3000), dto.ShippingFee.Cents)
	assert.Equal(t, int64(0), dto.Discount.Cents)
	assert.Equal(t, int64(2*12000+3*4500+3000), dto.TotalAmount.Cents)
	require.Len(t, dto.StatusHistory, 1)
	assert.Equal(t, CreatedNote, *dto.StatusHistory[0].Note)
	assert.Equal(t, userID, *dto.StatusHistory[0].ActorID)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusPreparing, enums.OrderStatusCancelled}, dto.AllowedTransitions)

	stock, sold := stockOf(t, conn, lamp.ID)
	assert.Equal(t, 3, stock)
	assert.Equal(t, 2, sold)
	stock, sold = stockOf(t, conn, mug.ID)
	assert.Equal(t, 3, stock)
	assert.Equal(t, 3, sold)
	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", mug.Variants[1].ID).Error)
	assert.Equal(t, 0, variant.Stock)

	assert.EqualValues(t, 0, count(t, conn, &models.CartItem{}, "1 = 1"))
	assert.EqualValues(t, 2, count(t, conn, &models.StockMovement{}, "order_id = ? AND reason = ?", dto.ID, enums.StockMovementCheckout))
	assert.EqualValues(t, 1, count(t, conn, &models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventOrderCreated, dto.ID))
	assert.EqualValues(t, 1, count(t, conn, &models.Cart{}, "user_id = ?", userID))
}

func TestCreateOrderUsesLivePriceAndSnapshotsIt(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	putInCart(t, conn, userID, lamp, nil, 1)

	dto, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.NoError(t, err)
	assert.Equal(t, int64(12000), dto.Items[0].UnitPrice.Cents)

	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", lamp.ID).Update("price_cents", 99000).Error)
	var item models.OrderItem
	require.NoError(t, conn.First(&item, "order_id = ?", dto.ID).Error)
	assert.Equal(t, int64(12000), item.UnitPriceCents)
	assert.Equal(t, "Desk lamp", item.Name)
}

func TestCreateOrderIgnoresClientTotals(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 60000, 5)
	putInCart(t, conn, userID, lamp, nil, 2)

	input := validInput(userID)
	forged := int64(1)
	input.ClientTotals = ClientTotals{SubTotalCents: &forged, TotalAmountCents: &forged, DiscountCents: &forged}

	dto, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), dto.SubTotal.Cents)
	assert.Equal(t, int64(0), dto.ShippingFee.Cents, "free shipping above threshold")
	assert.Equal(t, int64(120000), dto.TotalAmount.Cents)
}

func TestCreateOrderRemovesOnlySelectedLines(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	chair := seedProduct(t, conn, "Chair", 30000, 2)
	lampKey := putInCart(t, conn, userID, lamp, nil, 1)
	chairKey := putInCart(t, conn, userID, chair, nil, 1)

	input := validInput(userID)
	input.ItemKeys = []string{lampKey, lampKey}
	dto, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, lamp.ID, dto.Items[0].ProductID)

	var remaining []models.CartItem
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, chairKey, remaining[0].LineKey)
	stock, _ := stockOf(t, conn, chair.ID)
	assert.Equal(t, 2, stock)
}

func TestCreateOrderRejectsShortStockWithoutSideEffects(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	chair := seedProduct(t, conn, "Chair", 30000, 1)
	putInCart(t, conn, userID, lamp, nil, 2)
	putInCart(t, conn, userID, chair, nil, 2)

	_, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "unexpected error: %v", err)

	stock, sold := stockOf(t, conn, lamp.ID)
	assert.Equal(t, 5, stock)
	assert.Equal(t, 0, sold)
	assert.EqualValues(t, 0, count(t, conn, &models.Order{}, "1 = 1"))
	assert.EqualValues(t, 2, count(t, conn, &models.CartItem{}, "1 = 1"))
	assert.EqualValues(t, 0, count(t, conn, &models.StockMovement{}, "1 = 1"))
}

// racingLedger simulates a concurrent checkout winning the stock of a later line.
type racingLedger struct {
	product.StockLedger
	calls  int
	failAt int
}

func (l *racingLedger) Decrement(ctx context.Context, tx *gorm.DB, change product.StockChange) error {
	l.calls++
	if l.calls == l.failAt {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "insufficient stock for product %s", change.ProductName)
	}
	return l.StockLedger.Decrement(ctx, tx, change)
}

func TestCreateOrderRollsBackEarlierDecrements(t *testing.T) {
	t.Parallel()

	ledger := &racingLedger{StockLedger: product.NewLedger(), failAt: 2}
	svc, conn := newTestService(t, ledger)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	chair := seedProduct(t, conn, "Chair", 30000, 5)
	putInCart(t, conn, userID, lamp, nil, 1)
	putInCart(t, conn, userID, chair, nil, 1)

	_, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 2, ledger.calls)

	for _, id := range []uuid.UUID{lamp.ID, chair.ID} {
		stock, sold := stockOf(t, conn, id)
		assert.Equal(t, 5, stock)
		assert.Equal(t, 0, sold)
	}
	assert.EqualValues(t, 0, count(t, conn, &models.Order{}, "1 = 1"))
	assert.EqualValues(t, 0, count(t, conn, &models.StockMovement{}, "1 = 1"))
	assert.EqualValues(t, 0, count(t, conn, &models.OutboxEvent{}, "1 = 1"))
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	hidden := seedProduct(t, conn, "Hidden", 12000, 5)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)

	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, validInput(userID))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "empty cart: %v", err)

	putInCart(t, conn, userID, lamp, nil, 1)

	missing := validInput(userID)
	missing.ItemKeys = []string{cart.LineKey(uuid.New(), nil)}
	_, err = svc.CreateOrder(ctx, missing)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "unknown key: %v", err)

	garbage := validInput(userID)
	garbage.ItemKeys = []string{"not-a-key"}
	_, err = svc.CreateOrder(ctx, garbage)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "garbage key: %v", err)

	blank := validInput(userID)
	blank.Shipping.City = "   "
	_, err = svc.CreateOrder(ctx, blank)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "blank city: %v", err)

	method := validInput(userID)
	method.PaymentMethod = "barter"
	_, err = svc.CreateOrder(ctx, method)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "payment method: %v", err)

	_, err = svc.CreateOrder(ctx, validInput(uuid.Nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	hiddenKey := putInCart(t, conn, userID, hidden, nil, 1)
	unavailable := validInput(userID)
	unavailable.ItemKeys = []string{hiddenKey}
	_, err = svc.CreateOrder(ctx, unavailable)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "inactive product: %v", err)

	assert.EqualValues(t, 0, count(t, conn, &models.Order{}, "1 = 1"))
}

func TestCreateOrderDefaultsToCOD(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t, nil)
	userID := uuid.New()
	lamp := seedProduct(t, conn, "Desk lamp", 12000, 5)
	putInCart(t, conn, userID, lamp, nil, 1)

	input := validInput(userID)
	input.PaymentMethod = ""
	input.Note = strPtr("  ring twice ")
	dto, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodCOD, dto.PaymentMethod)
	require.NotNil(t, dto.Note)
	assert.Equal(t, "ring twice", *dto.Note)
}

func strPtr(v string) *string { return &v }
