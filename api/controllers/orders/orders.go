package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/middleware"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/responses"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/validators"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	internalorders "github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

const maxSearchQueryLen = 100

type transitionRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

// List returns the caller's own orders, or every order with filters for
// roles that may see them all.
func List(svc internalorders.Service, authorizer authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *internalorders.OrderListResult
		if authorizer.CanListAllOrders(actor) {
			filters, ferr := buildFilters(r)
			if ferr != nil {
				responses.WriteError(r.Context(), logg, w, ferr)
				return
			}
			result, err = svc.ListAll(r.Context(), actor, filters, params)
		} else {
			result, err = svc.ListMine(r.Context(), actor, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// History lists finished orders; success=true for delivered, false for failed.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		success, err := validators.ParseQueryBool(r, "success")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), actor, success, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Detail returns one order with items and status history.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus requests a lifecycle transition.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			OrderID: orderID,
			Target:  enums.OrderStatus(strings.ToLower(strings.TrimSpace(payload.Status))),
			Actor:   actor,
			Note:    payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateCustomer edits contact and shipping fields before the order ships.
func UpdateCustomer(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var patch types.ShippingPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateCustomerInfo(r.Context(), actor, orderID, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdatePayment records a payment status change made by the back office.
func UpdatePayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.PaymentStatus(strings.ToLower(strings.TrimSpace(payload.PaymentStatus)))
		order, err := svc.UpdatePaymentStatus(r.Context(), actor, orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func buildFilters(r *http.Request) (internalorders.OrderFilters, error) {
	q := r.URL.Query()
	filters := internalorders.OrderFilters{
		Query: validators.SanitizeString(q.Get("q"), maxSearchQueryLen),
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := enums.ParseOrderStatus(strings.ToLower(part))
			if err != nil {
				return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
			}
			filters.Statuses = append(filters.Statuses, status)
		}
	}
	if raw := strings.TrimSpace(q.Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(strings.ToLower(raw))
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_status filter")
		}
		filters.PaymentStatus = &status
	}

	var err error
	if filters.UserID, err = validators.ParseQueryUUID(r, "user_id"); err != nil {
		return filters, err
	}
	if filters.DateFrom, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filters, err
	}
	if filters.DateTo, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filters, err
	}
	if filters.DateTo != nil && len(strings.TrimSpace(q.Get("to"))) == len(time.DateOnly) {
		// a bare date includes the whole day
		end := filters.DateTo.Add(24*time.Hour - time.Nanosecond)
		filters.DateTo = &end
	}
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateFrom.After(*filters.DateTo) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	return filters, nil
}
