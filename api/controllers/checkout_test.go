package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/middleware"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	checkoutsvc "github.com/Thangvh29/WEB-tmdt-sub001/internal/checkout"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/money"
)

const checkoutShipping = `"shipping":{"full_name":"Tran Thi B","phone":"0987654321","address_line":"45 Hai Ba Trung","city":"Ha Noi"}`

type stubCheckoutService struct {
	calls int
	input checkoutsvc.CreateOrderInput
}

func (s *stubCheckoutService) CreateOrder(_ context.Context, input checkoutsvc.CreateOrderInput) (*orders.OrderDTO, error) {
	s.calls++
	s.input = input
	return &orders.OrderDTO{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Status:      enums.OrderStatusPending,
		SubTotal:    money.New(120000, enums.CurrencyVND),
		TotalAmount: money.New(120000, enums.CurrencyVND),
	}, nil
}

func postCheckout(svc checkoutsvc.Service, userID uuid.UUID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	ctx := middleware.WithActor(req.Context(), authz.Actor{UserID: userID, Role: enums.RoleUser})
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req.WithContext(ctx))
	return resp
}

func createdTotal(t *testing.T, resp *httptest.ResponseRecorder) int64 {
	t.Helper()
	var env struct {
		Data orders.OrderDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env.Data.TotalAmount.Cents
}

func TestCheckoutAcceptsForgedClientTotals(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		totals string
		want   checkoutsvc.ClientTotals
	}{
		"snake case number": {
			totals: `"total_amount":1,"sub_total":"0.5"`,
			want:   checkoutsvc.ClientTotals{TotalAmountCents: ptr(int64(100)), SubTotalCents: ptr(int64(50))},
		},
		"camel case": {
			totals: `"totalAmount":1,"shippingFee":0,"subTotal":2`,
			want: checkoutsvc.ClientTotals{
				TotalAmountCents: ptr(int64(100)),
				ShippingFeeCents: ptr(int64(0)),
				SubTotalCents:    ptr(int64(200)),
			},
		},
		"amount object": {
			totals: `"total_amount":{"cents":1,"value":"0.01","currency":"VND"},"discount":{"value":"3"}`,
			want:   checkoutsvc.ClientTotals{TotalAmountCents: ptr(int64(1)), DiscountCents: ptr(int64(300))},
		},
		"cents field wins": {
			totals: `"total_amount_cents":7,"total_amount":1`,
			want:   checkoutsvc.ClientTotals{TotalAmountCents: ptr(int64(7))},
		},
		"unreadable values": {
			totals: `"total_amount":"free","discount":true,"shipping_fee":null`,
			want:   checkoutsvc.ClientTotals{},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			svc := &stubCheckoutService{}
			userID := uuid.New()
			body := `{"item_keys":["p:7b0c3b52-7f55-4a59-9b44-6c2f3a0c8f11"],` + checkoutShipping + `,` + tc.totals + `}`
			resp := postCheckout(svc, userID, body)

			require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
			require.Equal(t, 1, svc.calls)
			assert.Equal(t, userID, svc.input.UserID)
			assert.Equal(t, tc.want, svc.input.ClientTotals)
			assert.Equal(t, int64(120000), createdTotal(t, resp))
		})
	}
}

func TestCheckoutWithoutSelectionUsesWholeCart(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"omitted": `{` + checkoutShipping + `}`,
		"empty":   `{"item_keys":[],` + checkoutShipping + `}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			svc := &stubCheckoutService{}
			resp := postCheckout(svc, uuid.New(), body)

			require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
			require.Equal(t, 1, svc.calls)
			assert.Empty(t, svc.input.ItemKeys)
			assert.Equal(t, enums.DefaultPaymentMethod, svc.input.PaymentMethod)
		})
	}
}

func TestCheckoutRejectsBadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown field":  `{"coupon":"FREE",` + checkoutShipping + `}`,
		"payment method": `{"payment_method":"barter",` + checkoutShipping + `}`,
		"blank key":      `{"item_keys":[""],` + checkoutShipping + `}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			svc := &stubCheckoutService{}
			resp := postCheckout(svc, uuid.New(), body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Zero(t, svc.calls)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
