package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/cart"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	pkgcheckout "github.com/Thangvh29/WEB-tmdt-sub001/pkg/checkout"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/payloads"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// CreatedNote seeds the history of every new order.
const CreatedNote = "Order created"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ShippingPolicy prices delivery for a subtotal. config.CheckoutConfig satisfies it.
type ShippingPolicy interface {
	ShippingFeeFor(subTotalCents int64) int64
}

// Service turns selected cart lines into a pending order.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*orders.OrderDTO, error)
}

// CreateOrderInput is the validated checkout request. ItemKeys selects cart
// lines; an empty selection checks out the whole cart.
type CreateOrderInput struct {
	UserID        uuid.UUID
	ItemKeys      []string
	Shipping      types.ShippingInfo
	PaymentMethod enums.PaymentMethod
	Note          *string
	ClientTotals  ClientTotals
}

// ClientTotals are the amounts a client believes it is paying. They are never
// trusted and only compared against the server computation for logging.
type ClientTotals struct {
	SubTotalCents    *int64
	ShippingFeeCents *int64
	DiscountCents    *int64
	TotalAmountCents *int64
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   product.StockLedger
	outbox   outbox.Emitter
	shipping ShippingPolicy
	currency enums.Currency
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(
	repo Repository,
	tx txRunner,
	ledger product.StockLedger,
	emitter outbox.Emitter,
	shipping ShippingPolicy,
	currency enums.Currency,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping policy required")
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		outbox:   emitter,
		shipping: shipping,
		currency: currency,
		metrics:  orderMetrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

type pricedLine struct {
	item models.CartItem
	live cart.LiveLine
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*orders.OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = enums.DefaultPaymentMethod
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	input.Shipping.Normalize()
	if err := validateShipping(input.Shipping); err != nil {
		return nil, err
	}
	keys, err := canonicalKeys(input.ItemKeys)
	if err != nil {
		return nil, err
	}
	note := trimNote(input.Note)

	ctx = s.logg.WithUserID(ctx, input.UserID.String())
	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindCart(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if record == nil || len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		selected, err := selectLines(record.Items, keys)
		if err != nil {
			return err
		}

		lines, err := s.priceLines(ctx, repo, selected)
		if err != nil {
			return err
		}

		orderID := uuid.New()
		actorID := input.UserID
		for _, line := range lines {
			if err := s.ledger.Decrement(ctx, tx, product.StockChange{
				ProductID:   line.item.ProductID,
				VariantID:   line.item.VariantID,
				ProductName: line.live.Name,
				Qty:         line.item.Quantity,
				Reason:      enums.StockMovementCheckout,
				OrderID:     &orderID,
				ActorID:     &actorID,
			}); err != nil {
				if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
					s.metrics.IncStockConflict("checkout")
				}
				return err
			}
		}

		order := s.buildOrder(orderID, input, note, lines)
		created, err = repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		removed := make([]string, 0, len(lines))
		for _, line := range lines {
			removed = append(removed, line.item.LineKey)
		}
		if err := repo.RemoveLines(ctx, record.ID, removed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove checked out cart lines")
		}

		for _, sold := range soldByProduct(lines) {
			if err := s.ledger.AddSold(ctx, tx, sold.productID, sold.qty); err != nil {
				return err
			}
		}

		return s.emitOrderCreated(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveOrderCreated(string(created.PaymentMethod), string(created.Currency), created.TotalAmountCents, len(created.Items))
	s.logTotalsMismatch(ctx, input.ClientTotals, created)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":    created.ID.String(),
		"total_cents": created.TotalAmountCents,
		"items":       len(created.Items),
	}), "order created")

	dto := orders.NewOrderDTO(created)
	return &dto, nil
}

// priceLines resolves every selected line against the live catalog and fails
// before any stock is touched when a line cannot be ordered. Lines come back
// in product order so concurrent checkouts lock rows in the same sequence.
func (s *service) priceLines(ctx context.Context, repo Repository, items []models.CartItem) ([]pricedLine, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := map[uuid.UUID]struct{}{}
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	products, err := repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	lines := make([]pricedLine, 0, len(items))
	checks := make([]pkgcheckout.AvailabilityInput, 0, len(items))
	for _, item := range items {
		live := cart.ResolveLive(products[item.ProductID], item.VariantID, item.Quantity)
		name := live.Name
		if name == "" {
			name = item.Name
		}
		live.Name = name
		lines = append(lines, pricedLine{item: item, live: live})
		checks = append(checks, pkgcheckout.AvailabilityInput{
			LineKey:     item.LineKey,
			ProductID:   item.ProductID,
			ProductName: name,
			Purchasable: live.Status != enums.CartItemStatusUnavailable,
			Available:   live.Available,
			Quantity:    item.Quantity,
		})
	}
	if err := pkgcheckout.ValidateAvailability(checks); err != nil {
		s.metrics.IncStockConflict("checkout_precheck")
		return nil, err
	}

	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].item, lines[j].item
		if a.ProductID != b.ProductID {
			return a.ProductID.String() < b.ProductID.String()
		}
		return a.LineKey < b.LineKey
	})
	return lines, nil
}

func (s *service) buildOrder(orderID uuid.UUID, input CreateOrderInput, note *string, lines []pricedLine) *models.Order {
	now := s.now().UTC()
	role := enums.RoleUser
	userID := input.UserID
	historyNote := CreatedNote

	order := &models.Order{
		ID:            orderID,
		UserID:        input.UserID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		PaymentMethod: input.PaymentMethod,
		Currency:      s.currency,
		Shipping:      input.Shipping,
		Note:          note,
		Version:       1,
		Items:         make([]models.OrderItem, 0, len(lines)),
		StatusHistory: []models.OrderStatusEntry{{
			Seq:       1,
			Status:    enums.OrderStatusPending,
			ActorID:   &userID,
			ActorRole: &role,
			Note:      &historyNote,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, line := range lines {
		lineTotal := line.live.PriceCents * int64(line.item.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.item.ProductID,
			VariantID:      line.item.VariantID,
			Name:           line.live.Name,
			SKU:            line.live.SKU,
			UnitPriceCents: line.live.PriceCents,
			Quantity:       line.item.Quantity,
			LineTotalCents: lineTotal,
			CreatedAt:      now,
		})
		order.SubTotalCents += lineTotal
	}
	order.ShippingFeeCents = s.shipping.ShippingFeeFor(order.SubTotalCents)
	order.DiscountCents = 0
	order.TotalAmountCents = order.SubTotalCents + order.ShippingFeeCents - order.DiscountCents
	if order.TotalAmountCents < 0 {
		order.TotalAmountCents = 0
	}
	return order
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	quantity := 0
	for _, item := range order.Items {
		quantity += item.Quantity
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.NewActorRef(order.UserID, enums.RoleUser),
		Data: payloads.OrderCreatedEvent{
			OrderID:          order.ID,
			UserID:           order.UserID,
			ItemCount:        len(order.Items),
			TotalQuantity:    quantity,
			TotalAmountCents: order.TotalAmountCents,
			Currency:         order.Currency,
			PaymentMethod:    order.PaymentMethod,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
	}
	return nil
}

func (s *service) logTotalsMismatch(ctx context.Context, client ClientTotals, order *models.Order) {
	fields := map[string]any{}
	compare := func(name string, claimed *int64, actual int64) {
		if claimed != nil && *claimed != actual {
			fields[name+"_client"] = *claimed
			fields[name+"_server"] = actual
		}
	}
	compare("sub_total", client.SubTotalCents, order.SubTotalCents)
	compare("shipping_fee", client.ShippingFeeCents, order.ShippingFeeCents)
	compare("discount", client.DiscountCents, order.DiscountCents)
	compare("total_amount", client.TotalAmountCents, order.TotalAmountCents)
	if len(fields) == 0 {
		return
	}
	fields["order_id"] = order.ID.String()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "client totals ignored")
}

type soldCount struct {
	productID uuid.UUID
	qty       int
}

func soldByProduct(lines []pricedLine) []soldCount {
	var out []soldCount
	index := map[uuid.UUID]int{}
	for _, line := range lines {
		if i, ok := index[line.item.ProductID]; ok {
			out[i].qty += line.item.Quantity
			continue
		}
		index[line.item.ProductID] = len(out)
		out = append(out, soldCount{productID: line.item.ProductID, qty: line.item.Quantity})
	}
	return out
}

func selectLines(items []models.CartItem, keys []string) ([]models.CartItem, error) {
	if len(keys) == 0 {
		return items, nil
	}
	byKey := make(map[string]models.CartItem, len(items))
	for _, item := range items {
		byKey[item.LineKey] = item
	}
	selected := make([]models.CartItem, 0, len(keys))
	for _, key := range keys {
		item, ok := byKey[key]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", key)
		}
		selected = append(selected, item)
	}
	return selected, nil
}

func canonicalKeys(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := map[string]struct{}{}
	for _, key := range raw {
		canonical, err := cart.CanonicalKey(key)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out, nil
}

func validateShipping(info types.ShippingInfo) error {
	details := map[string]string{}
	if info.FullName == "" {
		details["full_name"] = "required"
	}
	if info.Phone == "" {
		details["phone"] = "required"
	}
	if info.AddressLine == "" {
		details["address_line"] = "required"
	}
	if info.City == "" {
		details["city"] = "required"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "shipping information incomplete").WithDetails(details)
}

func trimNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
