package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/dbtest"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), NewLedger(), emitter, authz.New(), logger.Nop(), enums.CurrencyVND)
	require.NoError(t, err)
	return svc, conn
}

func adminActor() authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
}

func countOutbox(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewService(nil, nil, nil, nil, nil, nil, enums.CurrencyVND)
	require.Error(t, err)
}

func TestCreateProductNormalizesVariants(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	cmp := int64(350000)
	dto, err := svc.CreateProduct(context.Background(), adminActor(), CreateProductInput{
		Name:       "  Denim Jacket ",
		Category:   "outerwear",
		PriceCents: 1,
		IsApproved: true,
		IsActive:   true,
		Variants: []VariantInput{
			{SKU: strPtr("DJ-S"), PriceCents: 300000, Stock: 2, CompareAtPriceCents: &cmp},
			{SKU: strPtr("DJ-M"), PriceCents: 280000, Stock: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Denim Jacket", dto.Name)
	assert.Equal(t, int64(280000), dto.Price.Cents)
	assert.Equal(t, "2800", dto.Price.Value)
	assert.Equal(t, 7, dto.Stock)
	require.Len(t, dto.Variants, 2)
	assert.True(t, dto.Variants[0].IsDefault)
	require.NotNil(t, dto.CompareAtPrice)
	assert.Equal(t, cmp, dto.CompareAtPrice.Cents)
	assert.EqualValues(t, 1, countOutbox(t, conn, enums.EventProductCatalogChanged))
}

func TestCreateProductRejectsNonBackOffice(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.CreateProduct(context.Background(), authz.Actor{UserID: uuid.New(), Role: enums.RoleShipper}, CreateProductInput{
		Name: "x", Category: "y",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))
}

func TestCreateProductValidatesNegativeValues(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.CreateProduct(context.Background(), adminActor(), CreateProductInput{
		Name: "Hat", Category: "acc", Variants: []VariantInput{{PriceCents: -1}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestUpdateProductKeepsVariantIDsAndLedgerStock(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, conn, "Polo", 0, seedVariant{price: 150000, stock: 4}, seedVariant{price: 160000, stock: 1})
	keep := p.Variants[0].ID

	dto, err := svc.UpdateProduct(ctx, adminActor(), p.ID, UpdateProductInput{
		Name: strPtr("Polo Classic"),
		Variants: &[]VariantInput{
			{ID: &keep, PriceCents: 140000, Stock: 999},
			{PriceCents: 170000, Stock: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Polo Classic", dto.Name)
	require.Len(t, dto.Variants, 2)
	assert.Equal(t, keep, dto.Variants[0].ID)
	assert.Equal(t, 4, dto.Variants[0].Stock, "existing variant stock only moves through the ledger")
	assert.Equal(t, 7, dto.Stock)
	assert.Equal(t, int64(140000), dto.Price.Cents)

	var removed int64
	require.NoError(t, conn.Model(&models.ProductVariant{}).Where("id = ?", p.Variants[1].ID).Count(&removed).Error)
	assert.Zero(t, removed)
}

func TestUpdateProductRejectsForeignVariant(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	p := seedProduct(t, conn, "Polo", 0, seedVariant{price: 1, stock: 1})
	other := uuid.New()

	_, err := svc.UpdateProduct(context.Background(), adminActor(), p.ID, UpdateProductInput{
		Variants: &[]VariantInput{{ID: &other, PriceCents: 1}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestGetProductHidesUnapprovedFromPublic(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	p := seedProduct(t, conn, "Draft", 3)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_approved", false).Error)

	_, err := svc.GetProduct(context.Background(), p.ID, false)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	dto, err := svc.GetProduct(context.Background(), p.ID, true)
	require.NoError(t, err)
	assert.False(t, dto.IsApproved)
}

func TestListProductsFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedProduct(t, conn, "Visible", 1)
	}
	hidden := seedProduct(t, conn, "Hidden", 1)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)

	page, err := svc.ListProducts(ctx, ListProductsInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.ListProducts(ctx, ListProductsInput{Pagination: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	assert.Len(t, next.Products, 1)
	assert.Empty(t, next.NextCursor)

	admin := adminActor()
	all, err := svc.ListProducts(ctx, ListProductsInput{Actor: &admin, IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all.Products, 4)

	_, err = svc.ListProducts(ctx, ListProductsInput{Pagination: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSetApprovalAndActive(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, conn, "Boots", 2)

	dto, err := svc.SetApproval(ctx, adminActor(), p.ID, false)
	require.NoError(t, err)
	assert.False(t, dto.IsApproved)

	dto, err = svc.SetActive(ctx, adminActor(), p.ID, false)
	require.NoError(t, err)
	assert.False(t, dto.IsActive)

	_, err = svc.SetActive(ctx, adminActor(), uuid.New(), true)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.EqualValues(t, 2, countOutbox(t, conn, enums.EventProductCatalogChanged))
}

func TestAdjustStockThroughLedger(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, conn, "Shorts", 0, seedVariant{price: 1000, stock: 3})
	variantID := p.Variants[0].ID
	actor := adminActor()

	level, err := svc.AdjustStock(ctx, actor, p.ID, StockAdjustmentInput{VariantID: &variantID, Delta: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, 7, level.AggregateStock)
	assert.Equal(t, 4, level.AppliedDelta)

	level, err = svc.AdjustStock(ctx, actor, p.ID, StockAdjustmentInput{VariantID: &variantID, Stock: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, level.AggregateStock)
	assert.Equal(t, -6, level.AppliedDelta)

	movements, err := svc.ListStockMovements(ctx, actor, p.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, movements.Movements, 2)
	for _, m := range movements.Movements {
		assert.Equal(t, enums.StockMovementAdminAdjustment, m.Reason)
		require.NotNil(t, m.ActorUserID)
		assert.Equal(t, actor.UserID, *m.ActorUserID)
	}
	assert.EqualValues(t, 2, countOutbox(t, conn, enums.EventProductStockAdjusted))
}

func TestAdjustStockValidation(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	p := seedProduct(t, conn, "Gloves", 3)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, adminActor(), p.ID, StockAdjustmentInput{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.AdjustStock(ctx, adminActor(), p.ID, StockAdjustmentInput{Delta: intPtr(1), Stock: intPtr(1)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.AdjustStock(ctx, authz.Actor{UserID: uuid.New(), Role: enums.RoleUser}, p.ID, StockAdjustmentInput{Delta: intPtr(1)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.AdjustStock(ctx, adminActor(), uuid.New(), StockAdjustmentInput{Delta: intPtr(1)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
