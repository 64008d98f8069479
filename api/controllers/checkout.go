package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/responses"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/validators"
	checkoutsvc "github.com/Thangvh29/WEB-tmdt-sub001/internal/checkout"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/money"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

type checkoutRequest struct {
	ItemKeys         []string           `json:"item_keys,omitempty" validate:"omitempty,max=100,dive,required"`
	Shipping         types.ShippingInfo `json:"shipping"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	Note             *string            `json:"note,omitempty" validate:"omitempty,max=500"`
	SubTotalCents    *int64             `json:"sub_total_cents,omitempty"`
	ShippingFeeCents *int64             `json:"shipping_fee_cents,omitempty"`
	DiscountCents    *int64             `json:"discount_cents,omitempty"`
	TotalAmountCents *int64             `json:"total_amount_cents,omitempty"`
	SubTotal         *clientAmount      `json:"sub_total,omitempty"`
	SubTotalAlt      *clientAmount      `json:"subTotal,omitempty"`
	ShippingFee      *clientAmount      `json:"shipping_fee,omitempty"`
	ShippingFeeAlt   *clientAmount      `json:"shippingFee,omitempty"`
	Discount         *clientAmount      `json:"discount,omitempty"`
	TotalAmount      *clientAmount      `json:"total_amount,omitempty"`
	TotalAmountAlt   *clientAmount      `json:"totalAmount,omitempty"`
}

func (req checkoutRequest) clientTotals() checkoutsvc.ClientTotals {
	return checkoutsvc.ClientTotals{
		SubTotalCents:    firstCents(req.SubTotalCents, req.SubTotal, req.SubTotalAlt),
		ShippingFeeCents: firstCents(req.ShippingFeeCents, req.ShippingFee, req.ShippingFeeAlt),
		DiscountCents:    firstCents(req.DiscountCents, req.Discount),
		TotalAmountCents: firstCents(req.TotalAmountCents, req.TotalAmount, req.TotalAmountAlt),
	}
}

func firstCents(cents *int64, amounts ...*clientAmount) *int64 {
	if cents != nil {
		return cents
	}
	for _, a := range amounts {
		if a != nil && a.cents != nil {
			return a.cents
		}
	}
	return nil
}

// clientAmount is a client-submitted total in any of the shapes storefronts
// send: a number or decimal string in major units, or an amount object with
// cents. Values that do not parse are kept as absent.
type clientAmount struct {
	cents *int64
}

func (a *clientAmount) UnmarshalJSON(data []byte) error {
	a.cents = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '{':
		var obj struct {
			Cents *int64 `json:"cents"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		if obj.Cents != nil {
			a.cents = obj.Cents
			return nil
		}
		a.setDecimal(obj.Value)
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err == nil {
			a.setDecimal(raw)
		}
	default:
		a.setDecimal(string(data))
	}
	return nil
}

func (a *clientAmount) setDecimal(value string) {
	if value == "" {
		return
	}
	cents, err := money.FromString(value)
	if err != nil {
		return
	}
	a.cents = &cents
}

// Checkout turns the selected cart lines into a pending order; no selection
// checks out the whole cart. Prices and totals are always recomputed server
// side; client totals are advisory.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]any{"field": "payment_method"}))
			return
		}

		order, err := svc.CreateOrder(r.Context(), checkoutsvc.CreateOrderInput{
			UserID:        actor.UserID,
			ItemKeys:      payload.ItemKeys,
			Shipping:      payload.Shipping,
			PaymentMethod: method,
			Note:          payload.Note,
			ClientTotals:  payload.clientTotals(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, order)
	}
}
