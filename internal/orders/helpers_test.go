package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/dbtest"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

type testEnv struct {
	conn *gorm.DB
	svc  Service
	repo Repository
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	env := &testEnv{conn: conn, repo: repo}
	env.svc = newServiceWithRepo(t, conn, repo, opts)
	return env
}

func newServiceWithRepo(t *testing.T, conn *gorm.DB, repo Repository, opts Options) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		db.NewFromConn(conn),
		product.NewLedger(),
		outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		authz.New(),
		nil,
		logger.Nop(),
		opts,
	)
	require.NoError(t, err)
	return svc
}

type seededLine struct {
	product *models.Product
	variant *models.ProductVariant
	qty     int
}

// seedProduct stores a product whose counters already reflect a past checkout.
func seedProduct(t *testing.T, conn *gorm.DB, stock, sold int, variantStocks ...int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:         uuid.New(),
		Name:       "Linen shirt",
		Category:   "apparel",
		PriceCents: 25000,
		Stock:      stock,
		IsApproved: true,
		IsActive:   true,
	}
	for _, vs := range variantStocks {
		p.Variants = append(p.Variants, models.ProductVariant{ID: uuid.New(), PriceCents: 25000, Stock: vs})
	}
	product.Normalize(p)
	require.NoError(t, conn.Create(p).Error)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("sold", sold).Error)
	return p
}

type orderSeed struct {
	userID        uuid.UUID
	status        enums.OrderStatus
	paymentStatus enums.PaymentStatus
	paymentMethod enums.PaymentMethod
	createdAt     time.Time
	lines         []seededLine
}

func seedOrder(t *testing.T, conn *gorm.DB, seed orderSeed) *models.Order {
	t.Helper()
	if seed.userID == uuid.Nil {
		seed.userID = uuid.New()
	}
	if seed.status == "" {
		seed.status = enums.OrderStatusPending
	}
	if seed.paymentStatus == "" {
		seed.paymentStatus = enums.PaymentStatusUnpaid
	}
	if seed.paymentMethod == "" {
		seed.paymentMethod = enums.PaymentMethodCOD
	}
	if seed.createdAt.IsZero() {
		seed.createdAt = time.Now().UTC()
	}
	role := enums.RoleUser
	note := "Order created"
	order := &models.Order{
		UserID:        seed.userID,
		Status:        seed.status,
		PaymentStatus: seed.paymentStatus,
		PaymentMethod: seed.paymentMethod,
		Currency:      enums.CurrencyVND,
		Shipping: types.ShippingInfo{
			FullName:    "Nguyen Van A",
			Phone:       "0901234567",
			AddressLine: "12 Le Loi",
			City:        "Ho Chi Minh",
		},
		Version:   1,
		CreatedAt: seed.createdAt,
		UpdatedAt: seed.createdAt,
		StatusHistory: []models.OrderStatusEntry{{
			Seq:       1,
			Status:    enums.OrderStatusPending,
			ActorID:   &seed.userID,
			ActorRole: &role,
			Note:      &note,
			CreatedAt: seed.createdAt,
		}},
	}
	for _, line := range seed.lines {
		item := models.OrderItem{
			ProductID:      line.product.ID,
			Name:           line.product.Name,
			UnitPriceCents: line.product.PriceCents,
			Quantity:       line.qty,
			LineTotalCents: line.product.PriceCents * int64(line.qty),
		}
		if line.variant != nil {
			id := line.variant.ID
			item.VariantID = &id
		}
		order.Items = append(order.Items, item)
		order.SubTotalCents += item.LineTotalCents
	}
	order.TotalAmountCents = order.SubTotalCents
	_, err := NewRepository(conn).CreateOrder(context.Background(), order)
	require.NoError(t, err)
	return order
}

func loadCounters(t *testing.T, conn *gorm.DB, productID uuid.UUID) (stock, sold int) {
	t.Helper()
	var row models.Product
	require.NoError(t, conn.Select("stock", "sold").First(&row, "id = ?", productID).Error)
	return row.Stock, row.Sold
}

func countRows(t *testing.T, conn *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func admin() authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
}

func shipper() authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: enums.RoleShipper}
}

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }
