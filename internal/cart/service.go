package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/money"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 999

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindManyByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

// Service exposes the owner's cart operations. Carts are only reachable
// through the authenticated user id.
type Service interface {
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID uuid.UUID, key string, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, key string) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Get(ctx context.Context, userID uuid.UUID, live bool) (*CartDTO, error)
}

// AddItemInput identifies the product line to add. When the product has
// variants and VariantID is nil the default variant is used.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

type service struct {
	repo     *Repository
	products productLoader
	tx       txRunner
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	currency enums.Currency
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, products productLoader, tx txRunner, orderMetrics *metrics.OrderMetrics, logg *logger.Logger, currency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		metrics:  orderMetrics,
		logg:     logg,
		currency: currency,
	}, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if err := validateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "product")
	}
	if !product.Purchasable() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "product %s is not available", product.Name)
	}

	variantID := input.VariantID
	var variant *models.ProductVariant
	switch {
	case variantID != nil:
		variant = product.VariantByID(*variantID)
		if variant == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found for product")
		}
	case len(product.Variants) > 0:
		variant = product.DefaultVariant()
		if variant == nil {
			variant = &product.Variants[0]
		}
		id := variant.ID
		variantID = &id
	}

	item := &models.CartItem{
		ProductID:  product.ID,
		VariantID:  variantID,
		LineKey:    LineKey(product.ID, variantID),
		Quantity:   input.Quantity,
		Name:       product.Name,
		PriceCents: product.PriceCents,
	}
	if variant != nil {
		item.SKU = variant.SKU
		item.PriceCents = variant.PriceCents
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.EnsureCart(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		item.CartID = cart.ID
		stored, err := repo.UpsertItem(ctx, item)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		if stored.Quantity > MaxLineQuantity {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity cannot exceed %d per line", MaxLineQuantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncCartAdd()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":  userID.String(),
		"line_key": item.LineKey,
		"quantity": input.Quantity,
	})
	s.logg.Info(logCtx, "cart item added")
	return s.Get(ctx, userID, false)
}

func (s *service) UpdateItem(ctx context.Context, userID uuid.UUID, key string, quantity int) (*CartDTO, error) {
	canonical, err := CanonicalKey(key)
	if err != nil {
		return nil, err
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, itemNotFound(canonical)
	}
	affected, err := s.repo.SetQuantity(ctx, cart.ID, canonical, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	if affected == 0 {
		return nil, itemNotFound(canonical)
	}
	return s.Get(ctx, userID, false)
}

func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, key string) (*CartDTO, error) {
	canonical, err := CanonicalKey(key)
	if err != nil {
		return nil, err
	}
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, itemNotFound(canonical)
	}
	affected, err := s.repo.DeleteItems(ctx, cart.ID, []string{canonical})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if affected == 0 {
		return nil, itemNotFound(canonical)
	}
	return s.Get(ctx, userID, false)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.findCart(ctx, userID)
	if err != nil || cart == nil {
		return err
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, live bool) (*CartDTO, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return emptyCartDTO(s.currency, live), nil
	}

	dto := emptyCartDTO(s.currency, live)
	id := cart.ID
	updatedAt := cart.UpdatedAt
	dto.ID = &id
	dto.UpdatedAt = &updatedAt

	var catalog map[uuid.UUID]*models.Product
	if live {
		catalog, err = s.products.FindManyByID(ctx, productIDs(cart.Items))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load live prices")
		}
	}

	var estimate int64
	for _, item := range cart.Items {
		line := snapshotItemDTO(item, s.currency)
		dto.Summary.TotalQuantity += item.Quantity
		if !live {
			estimate += item.PriceCents * int64(item.Quantity)
			dto.Items = append(dto.Items, line)
			continue
		}

		current := ResolveLive(catalog[item.ProductID], item.VariantID, item.Quantity)
		line.Status = current.Status
		if current.Status != enums.CartItemStatusUnavailable {
			available := current.Available
			line.Available = &available
			line.Name = current.Name
			line.SKU = current.SKU
			line.UnitPrice = money.New(current.PriceCents, s.currency)
			line.LineTotal = money.New(current.PriceCents*int64(item.Quantity), s.currency)
			estimate += current.PriceCents * int64(item.Quantity)
		}
		dto.Items = append(dto.Items, line)
	}
	dto.Summary.EstimatedTotal = money.New(estimate, s.currency)
	return dto, nil
}

func (s *service) findCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if quantity > MaxLineQuantity {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity cannot exceed %d per line", MaxLineQuantity)
	}
	return nil
}

func productIDs(items []models.CartItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func itemNotFound(key string) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", key)
}

