package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/payloads"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/pagination"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// Service exposes catalog reads and back-office product management.
type Service interface {
	CreateProduct(ctx context.Context, actor authz.Actor, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, actor authz.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID, includeHidden bool) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	SetApproval(ctx context.Context, actor authz.Actor, productID uuid.UUID, approved bool) (*ProductDTO, error)
	SetActive(ctx context.Context, actor authz.Actor, productID uuid.UUID, active bool) (*ProductDTO, error)
	AdjustStock(ctx context.Context, actor authz.Actor, productID uuid.UUID, input StockAdjustmentInput) (*StockLevelDTO, error)
	ListStockMovements(ctx context.Context, actor authz.Actor, productID uuid.UUID, params pagination.Params) (*StockMovementListResult, error)
}

// VariantInput describes one variant in a create or update payload.
// ID is set when updating an existing variant.
type VariantInput struct {
	ID                  *uuid.UUID
	SKU                 *string
	PriceCents          int64
	CompareAtPriceCents *int64
	Stock               int
	Attributes          types.VariantAttributes
	IsDefault           bool
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	OwnerID             *uuid.UUID
	Name                string
	Brand               *string
	Category            string
	Description         *string
	PriceCents          int64
	CompareAtPriceCents *int64
	Stock               int
	IsApproved          bool
	IsActive            bool
	Variants            []VariantInput
}

// UpdateProductInput holds optional mutation values. A non-nil Variants
// replaces the variant set; listed ids are kept, others are removed.
type UpdateProductInput struct {
	Name                *string
	Brand               *string
	Category            *string
	Description         *string
	PriceCents          *int64
	CompareAtPriceCents *int64
	IsActive            *bool
	Variants            *[]VariantInput
}

// StockAdjustmentInput is the admin override. Exactly one of Delta or Stock is set.
type StockAdjustmentInput struct {
	VariantID *uuid.UUID
	Delta     *int
	Stock     *int
}

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Category      string     `json:"category,omitempty"`
	Brand         string     `json:"brand,omitempty"`
	PriceMinCents *int64     `json:"price_min_cents,omitempty"`
	PriceMaxCents *int64     `json:"price_max_cents,omitempty"`
	InStock       *bool      `json:"in_stock,omitempty"`
	OwnerID       *uuid.UUID `json:"owner_id,omitempty"`
	Query         string     `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter products.
// IncludeHidden is only honoured for back-office actors.
type ListProductsInput struct {
	Actor         *authz.Actor
	IncludeHidden bool
	Filters       ProductListFilters
	Pagination    pagination.Params
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	ledger   StockLedger
	outbox   outbox.Emitter
	authz    authz.Authorizer
	logg     *logger.Logger
	currency enums.Currency
}

// NewService constructs a product service instance.
func NewService(repo *Repository, tx txRunner, ledger StockLedger, emitter outbox.Emitter, authorizer authz.Authorizer, logg *logger.Logger, currency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		outbox:   emitter,
		authz:    authorizer,
		logg:     logg,
		currency: currency,
	}, nil
}

func (s *service) CreateProduct(ctx context.Context, actor authz.Actor, input CreateProductInput) (*ProductDTO, error) {
	if err := authz.Require(s.authz.CanManageCatalog(actor), "catalog management requires admin or staff"); err != nil {
		return nil, err
	}
	if err := validateBase(input.Name, input.Category, input.PriceCents, input.CompareAtPriceCents, input.Stock); err != nil {
		return nil, err
	}
	if err := validateVariants(input.Variants); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:                  uuid.New(),
		OwnerID:             input.OwnerID,
		Name:                strings.TrimSpace(input.Name),
		Brand:               trimPtr(input.Brand),
		Category:            strings.TrimSpace(input.Category),
		Description:         trimPtr(input.Description),
		PriceCents:          input.PriceCents,
		CompareAtPriceCents: input.CompareAtPriceCents,
		Stock:               input.Stock,
		IsApproved:          input.IsApproved,
		IsActive:            input.IsActive,
		Variants:            toVariantModels(input.Variants),
	}
	Normalize(product)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).CreateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		return s.emitCatalogChange(ctx, tx, actor, product, "created")
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product created")
	return s.GetProduct(ctx, product.ID, true)
}

func (s *service) UpdateProduct(ctx context.Context, actor authz.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := authz.Require(s.authz.CanManageCatalog(actor), "catalog management requires admin or staff"); err != nil {
		return nil, err
	}
	if input.Variants != nil {
		if err := validateVariants(*input.Variants); err != nil {
			return nil, err
		}
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return pkgerrors.Lookup(err, "product")
		}

		applyUpdateToProduct(product, input)
		if err := validateBase(product.Name, product.Category, product.PriceCents, product.CompareAtPriceCents, product.Stock); err != nil {
			return err
		}

		if input.Variants != nil {
			for _, v := range *input.Variants {
				if v.ID != nil && product.VariantByID(*v.ID) == nil {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s does not belong to product", *v.ID)
				}
			}
			product.Variants = toVariantModels(*input.Variants)
		}
		Normalize(product)

		if err := txRepo.UpdateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		if input.Variants != nil {
			if err := txRepo.SyncVariants(ctx, product.ID, product.Variants); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sync variants")
			}
			if len(product.Variants) > 0 {
				stock, err := recomputeAggregate(tx.WithContext(ctx), product.ID)
				if err != nil {
					return err
				}
				product.Stock = stock
			}
		}
		return s.emitCatalogChange(ctx, tx, actor, product, "updated")
	}); err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, productID, true)
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID, includeHidden bool) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "product")
	}
	if !includeHidden && !product.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := newProductDTO(product, s.currency)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	includeHidden := input.IncludeHidden && input.Actor != nil && s.authz.CanManageCatalog(*input.Actor)
	if input.Filters.PriceMinCents != nil && input.Filters.PriceMaxCents != nil &&
		*input.Filters.PriceMinCents > *input.Filters.PriceMaxCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_min_cents cannot exceed price_max_cents")
	}
	if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListProducts(ctx, productListQuery{
		Pagination:   input.Pagination,
		Filters:      input.Filters,
		IncludeDraft: includeHidden,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	result := &ProductListResult{Products: make([]ProductDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Products = append(result.Products, newProductDTO(&rows[i], s.currency))
	}
	return result, nil
}

func (s *service) SetApproval(ctx context.Context, actor authz.Actor, productID uuid.UUID, approved bool) (*ProductDTO, error) {
	return s.setFlag(ctx, actor, productID, "is_approved", approved, "approval")
}

func (s *service) SetActive(ctx context.Context, actor authz.Actor, productID uuid.UUID, active bool) (*ProductDTO, error) {
	return s.setFlag(ctx, actor, productID, "is_active", active, "visibility")
}

func (s *service) setFlag(ctx context.Context, actor authz.Actor, productID uuid.UUID, column string, value bool, change string) (*ProductDTO, error) {
	if err := authz.Require(s.authz.CanManageCatalog(actor), "catalog management requires admin or staff"); err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.UpdateFlags(ctx, productID, map[string]any{column: value})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product flags")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			return pkgerrors.Lookup(err, "product")
		}
		return s.emitCatalogChange(ctx, tx, actor, product, change)
	}); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID, true)
}

// AdjustStock is the back-office override. It goes through the same ledger as
// checkout so every write is audited and floored at zero.
func (s *service) AdjustStock(ctx context.Context, actor authz.Actor, productID uuid.UUID, input StockAdjustmentInput) (*StockLevelDTO, error) {
	if err := authz.Require(s.authz.CanOverrideStock(actor), "stock override requires admin or staff"); err != nil {
		return nil, err
	}
	if (input.Delta == nil) == (input.Stock == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of delta or stock is required")
	}
	if input.Delta != nil && *input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	if input.Stock != nil && *input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be >= 0")
	}

	change := StockChange{
		ProductID: productID,
		VariantID: input.VariantID,
		Reason:    enums.StockMovementAdminAdjustment,
		ActorID:   actor.UserRef(),
	}

	var level *StockLevel
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if input.Delta != nil {
			level, err = s.ledger.Adjust(ctx, tx, change, *input.Delta)
		} else {
			level, err = s.ledger.Set(ctx, tx, change, *input.Stock)
		}
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductStockAdjusted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Actor:         outbox.NewActorRef(actor.UserID, actor.Role),
			Data: payloads.ProductStockAdjustedEvent{
				ProductID:      productID,
				VariantID:      input.VariantID,
				Delta:          level.AppliedDelta,
				VariantStock:   level.VariantStock,
				AggregateStock: level.AggregateStock,
			},
		})
	}); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id":    productID.String(),
		"applied_delta": level.AppliedDelta,
		"stock":         level.AggregateStock,
	})
	s.logg.Info(logCtx, "stock adjusted")

	return &StockLevelDTO{
		ProductID:      productID,
		VariantID:      input.VariantID,
		VariantStock:   level.VariantStock,
		AggregateStock: level.AggregateStock,
		AppliedDelta:   level.AppliedDelta,
	}, nil
}

func (s *service) ListStockMovements(ctx context.Context, actor authz.Actor, productID uuid.UUID, params pagination.Params) (*StockMovementListResult, error) {
	if err := authz.Require(s.authz.CanOverrideStock(actor), "stock audit requires admin or staff"); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListStockMovements(ctx, productID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	result := &StockMovementListResult{Movements: make([]StockMovementDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Movements = append(result.Movements, newStockMovementDTO(row))
	}
	return result, nil
}

func (s *service) emitCatalogChange(ctx context.Context, tx *gorm.DB, actor authz.Actor, product *models.Product, change string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventProductCatalogChanged,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Actor:         outbox.NewActorRef(actor.UserID, actor.Role),
		Data: payloads.ProductCatalogChangedEvent{
			ProductID:  product.ID,
			Change:     change,
			IsApproved: product.IsApproved,
			IsActive:   product.IsActive,
			PriceCents: product.PriceCents,
			Stock:      product.Stock,
		},
	})
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Brand != nil {
		product.Brand = trimPtr(input.Brand)
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		product.Description = trimPtr(input.Description)
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.CompareAtPriceCents != nil {
		product.CompareAtPriceCents = input.CompareAtPriceCents
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}

func toVariantModels(inputs []VariantInput) []models.ProductVariant {
	if len(inputs) == 0 {
		return nil
	}
	out := make([]models.ProductVariant, 0, len(inputs))
	for _, in := range inputs {
		v := models.ProductVariant{
			SKU:                 trimPtr(in.SKU),
			PriceCents:          in.PriceCents,
			CompareAtPriceCents: in.CompareAtPriceCents,
			Stock:               in.Stock,
			Attributes:          in.Attributes,
			IsDefault:           in.IsDefault,
		}
		if in.ID != nil {
			v.ID = *in.ID
		}
		out = append(out, v)
	}
	return out
}

func validateBase(name, category string, price int64, compareAt *int64, stock int) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(category) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if price < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be >= 0")
	}
	if compareAt != nil && *compareAt < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "compare_at_price_cents must be >= 0")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be >= 0")
	}
	return nil
}

func validateVariants(variants []VariantInput) error {
	seenIDs := map[uuid.UUID]struct{}{}
	seenSKUs := map[string]struct{}{}
	for i, v := range variants {
		if v.PriceCents < 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "variants[%d].price_cents must be >= 0", i)
		}
		if v.CompareAtPriceCents != nil && *v.CompareAtPriceCents < 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "variants[%d].compare_at_price_cents must be >= 0", i)
		}
		if v.Stock < 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "variants[%d].stock must be >= 0", i)
		}
		if v.ID != nil {
			if _, dup := seenIDs[*v.ID]; dup {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "variants[%d].id is duplicated", i)
			}
			seenIDs[*v.ID] = struct{}{}
		}
		if v.SKU != nil {
			sku := strings.TrimSpace(*v.SKU)
			if sku == "" {
				continue
			}
			if _, dup := seenSKUs[sku]; dup {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "variants[%d].sku %q is duplicated", i, sku)
			}
			seenSKUs[sku] = struct{}{}
		}
	}
	return nil
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

