package controllers

import (
	"net/http"
	"strings"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/middleware"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/responses"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/validators"
	productsvc "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
)

const maxSearchQueryLen = 100

// ListProducts serves the public catalog. Back-office callers may pass
// include_hidden=true to see unapproved or inactive products.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeHidden, err := validators.ParseQueryBool(r, "include_hidden")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.ListProductsInput{
			Filters:       filters,
			Pagination:    params,
			IncludeHidden: includeHidden != nil && *includeHidden,
		}
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			input.Actor = &actor
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetProduct returns one product. Hidden products are only visible to back office.
func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeHidden := false
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			includeHidden = actor.Role.IsBackOffice()
		}

		product, err := svc.GetProduct(r.Context(), productID, includeHidden)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseProductFilters(r *http.Request) (productsvc.ProductListFilters, error) {
	q := r.URL.Query()
	filters := productsvc.ProductListFilters{
		Category: strings.TrimSpace(q.Get("category")),
		Brand:    strings.TrimSpace(q.Get("brand")),
		Query:    validators.SanitizeString(q.Get("q"), maxSearchQueryLen),
	}

	var err error
	if filters.PriceMinCents, err = validators.ParseQueryInt64(r, "price_min_cents"); err != nil {
		return filters, err
	}
	if filters.PriceMaxCents, err = validators.ParseQueryInt64(r, "price_max_cents"); err != nil {
		return filters, err
	}
	if filters.InStock, err = validators.ParseQueryBool(r, "in_stock"); err != nil {
		return filters, err
	}
	if filters.OwnerID, err = validators.ParseQueryUUID(r, "owner_id"); err != nil {
		return filters, err
	}
	return filters, nil
}
