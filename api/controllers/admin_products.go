package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/responses"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/validators"
	productsvc "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

type variantRequest struct {
	ID                  *uuid.UUID              `json:"id,omitempty"`
	SKU                 *string                 `json:"sku,omitempty" validate:"omitempty,max=64"`
	PriceCents          int64                   `json:"price_cents" validate:"gte=0"`
	CompareAtPriceCents *int64                  `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	Stock               int                     `json:"stock" validate:"gte=0"`
	Attributes          types.VariantAttributes `json:"attributes" validate:"dive"`
	IsDefault           bool                    `json:"is_default"`
}

type createProductRequest struct {
	OwnerID             *uuid.UUID       `json:"owner_id,omitempty"`
	Name                string           `json:"name" validate:"required,max=200"`
	Brand               *string          `json:"brand,omitempty" validate:"omitempty,max=120"`
	Category            string           `json:"category" validate:"required,max=120"`
	Description         *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceCents          int64            `json:"price_cents" validate:"gte=0"`
	CompareAtPriceCents *int64           `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	Stock               int              `json:"stock" validate:"gte=0"`
	IsApproved          bool             `json:"is_approved"`
	IsActive            *bool            `json:"is_active,omitempty"`
	Variants            []variantRequest `json:"variants,omitempty" validate:"dive"`
}

type updateProductRequest struct {
	Name                *string           `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Brand               *string           `json:"brand,omitempty" validate:"omitempty,max=120"`
	Category            *string           `json:"category,omitempty" validate:"omitempty,min=1,max=120"`
	Description         *string           `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceCents          *int64            `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	CompareAtPriceCents *int64            `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	IsActive            *bool             `json:"is_active,omitempty"`
	Variants            *[]variantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
}

type stockAdjustmentRequest struct {
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Delta     *int       `json:"delta,omitempty"`
	Stock     *int       `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

type approvalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func toVariantInputs(reqs []variantRequest) []productsvc.VariantInput {
	out := make([]productsvc.VariantInput, 0, len(reqs))
	for _, v := range reqs {
		out = append(out, productsvc.VariantInput{
			ID:                  v.ID,
			SKU:                 v.SKU,
			PriceCents:          v.PriceCents,
			CompareAtPriceCents: v.CompareAtPriceCents,
			Stock:               v.Stock,
			Attributes:          v.Attributes,
			IsDefault:           v.IsDefault,
		})
	}
	return out
}

func (req createProductRequest) toInput() productsvc.CreateProductInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return productsvc.CreateProductInput{
		OwnerID:             req.OwnerID,
		Name:                strings.TrimSpace(req.Name),
		Brand:               req.Brand,
		Category:            strings.TrimSpace(req.Category),
		Description:         req.Description,
		PriceCents:          req.PriceCents,
		CompareAtPriceCents: req.CompareAtPriceCents,
		Stock:               req.Stock,
		IsApproved:          req.IsApproved,
		IsActive:            active,
		Variants:            toVariantInputs(req.Variants),
	}
}

func (req updateProductRequest) toInput() productsvc.UpdateProductInput {
	input := productsvc.UpdateProductInput{
		Name:                req.Name,
		Brand:               req.Brand,
		Category:            req.Category,
		Description:         req.Description,
		PriceCents:          req.PriceCents,
		CompareAtPriceCents: req.CompareAtPriceCents,
		IsActive:            req.IsActive,
	}
	if req.Variants != nil {
		variants := toVariantInputs(*req.Variants)
		input.Variants = &variants
	}
	return input
}

// AdminCreateProduct creates a catalog product, optionally with variants.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), actor, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, product)
	}
}

// AdminUpdateProduct applies a partial update; a variants array replaces the set.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), actor, productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminAdjustStock applies a delta or absolute stock override through the ledger.
func AdminAdjustStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload stockAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.AdjustStock(r.Context(), actor, productID, productsvc.StockAdjustmentInput{
			VariantID: payload.VariantID,
			Delta:     payload.Delta,
			Stock:     payload.Stock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

// AdminSetApproval toggles the approval flag.
func AdminSetApproval(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload approvalRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetApproval(r.Context(), actor, productID, *payload.Approved)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminSetActive toggles storefront visibility.
func AdminSetActive(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload activeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetActive(r.Context(), actor, productID, *payload.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminListStockMovements pages the ledger audit trail for a product.
func AdminListStockMovements(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListStockMovements(r.Context(), actor, productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
