package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/payloads"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/pagination"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

// ExpiredNote is recorded on orders cancelled by the pending TTL sweep.
const ExpiredNote = "Pending order expired"

const (
	outcomeApplied  = "applied"
	outcomeNoop     = "noop"
	outcomeRejected = "rejected"
	outcomeConflict = "conflict"
)

var errStaleVersion = errors.New("order version changed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order aggregate and its lifecycle controller.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error)
	Get(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListMine(ctx context.Context, actor authz.Actor, params pagination.Params) (*OrderListResult, error)
	ListAll(ctx context.Context, actor authz.Actor, filters OrderFilters, params pagination.Params) (*OrderListResult, error)
	History(ctx context.Context, actor authz.Actor, success *bool, params pagination.Params) (*OrderListResult, error)
	UpdateCustomerInfo(ctx context.Context, actor authz.Actor, orderID uuid.UUID, patch types.ShippingPatch) (*OrderDTO, error)
	UpdatePaymentStatus(ctx context.Context, actor authz.Actor, orderID uuid.UUID, status enums.PaymentStatus) (*OrderDTO, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// TransitionInput requests a status change. Note is mandatory for failed.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   authz.Actor
	Note    *string
}

// Options tune the lifecycle controller.
type Options struct {
	// MaxRetries bounds how often a write is replayed after losing a version race.
	MaxRetries          int
	SettleCODOnDelivery bool
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  product.StockLedger
	outbox  outbox.Emitter
	authz   authz.Authorizer
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	opts    Options
	now     func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledger product.StockLedger, emitter outbox.Emitter, authorizer authz.Authorizer, orderMetrics *metrics.OrderMetrics, logg *logger.Logger, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &service{
		repo:    repo,
		tx:      tx,
		ledger:  ledger,
		outbox:  emitter,
		authz:   authorizer,
		metrics: orderMetrics,
		logg:    logg,
		opts:    opts,
		now:     time.Now,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", input.Target)
	}
	note := normalizeNote(input.Note)
	if input.Target == enums.OrderStatusFailed && note == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a failure reason is required when marking an order failed")
	}
	if !input.Actor.IsSystem() && input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	var (
		from    enums.OrderStatus
		outcome string
	)
	err := s.withVersionRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Lookup(err, "order")
		}
		from = order.Status

		allowed := s.authz.CanTransition(input.Actor, order.Status, input.Target)
		if err := authz.Require(allowed, fmt.Sprintf("role %s cannot move an order from %s to %s", input.Actor.Role, order.Status, input.Target)); err != nil {
			outcome = outcomeRejected
			return err
		}
		if order.Status == input.Target {
			outcome = outcomeNoop
			return nil
		}
		if !CanTransition(order.Status, input.Target) {
			outcome = outcomeRejected
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot transition order from %s to %s", order.Status, input.Target)
		}

		paymentStatus := s.nextPaymentStatus(ctx, order, input.Target)
		updates := map[string]any{"status": input.Target}
		if paymentStatus != order.PaymentStatus {
			updates["payment_status"] = paymentStatus
		}
		affected, err := repo.UpdateVersioned(ctx, order.ID, order.Version, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return errStaleVersion
		}

		changedAt := s.now().UTC()
		role := input.Actor.Role
		entry := &models.OrderStatusEntry{
			OrderID:   order.ID,
			Status:    input.Target,
			ActorID:   input.Actor.UserRef(),
			ActorRole: &role,
			Note:      note,
			CreatedAt: changedAt,
		}
		if err := repo.AppendStatusEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		released := false
		if input.Target.ReleasesStock() {
			if err := s.releaseStock(ctx, tx, repo, order, input); err != nil {
				return err
			}
			released = true
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.NewActorRef(input.Actor.UserID, input.Actor.Role),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				From:          order.Status,
				To:            input.Target,
				Note:          note,
				PaymentStatus: paymentStatus,
				StockReleased: released,
				Version:       order.Version + 1,
				ChangedAt:     changedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
		}
		outcome = outcomeApplied
		return nil
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			outcome = outcomeConflict
		}
		if outcome != "" {
			s.metrics.IncTransition(string(from), string(input.Target), outcome)
		}
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(input.Target), outcome)
	if outcome == outcomeApplied {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"from":       from,
			"to":         input.Target,
			"actor_role": input.Actor.Role,
		}), "order status changed")
	}
	return s.loadDetail(ctx, input.OrderID)
}

// nextPaymentStatus derives the payment flag implied by entering target.
func (s *service) nextPaymentStatus(ctx context.Context, order *models.Order, target enums.OrderStatus) enums.PaymentStatus {
	current := order.PaymentStatus
	if target.ReleasesStock() {
		if current == enums.PaymentStatusPartial {
			s.logg.Warn(s.logg.WithField(ctx, "target", target), "partially paid order needs a manual refund")
		}
		return current.AfterRelease()
	}
	if target == enums.OrderStatusDelivered && s.opts.SettleCODOnDelivery &&
		order.PaymentMethod.CollectedOnDelivery() && current == enums.PaymentStatusUnpaid {
		return enums.PaymentStatusPaid
	}
	return current
}

// releaseStock credits every line back and reverses the sold counters. Lines
// whose product or variant no longer exists are skipped.
func (s *service) releaseStock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input TransitionInput) error {
	items, err := repo.FindItems(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	orderID := order.ID
	reason := releaseReason(input.Target)
	for _, item := range items {
		credited, err := s.ledger.Credit(ctx, tx, product.StockChange{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.Name,
			Qty:         item.Quantity,
			Reason:      reason,
			OrderID:     &orderID,
			ActorID:     input.Actor.UserRef(),
		})
		if err != nil {
			return err
		}
		if !credited {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", item.ProductID.String()), "stock credit skipped for missing product")
			continue
		}
		if err := s.ledger.SubtractSold(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "order")
	}
	if err := authz.Require(s.authz.CanViewOrder(actor, order.UserID), "order belongs to another user"); err != nil {
		return nil, err
	}
	dto := newOrderDTO(order)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, actor authz.Actor, params pagination.Params) (*OrderListResult, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID := actor.UserID
	return s.list(ctx, OrderFilters{UserID: &userID}, params)
}

func (s *service) ListAll(ctx context.Context, actor authz.Actor, filters OrderFilters, params pagination.Params) (*OrderListResult, error) {
	if err := authz.Require(s.authz.CanListAllOrders(actor), "role cannot list all orders"); err != nil {
		return nil, err
	}
	for _, status := range filters.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
		}
	}
	if filters.PaymentStatus != nil && !filters.PaymentStatus.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", *filters.PaymentStatus)
	}
	return s.list(ctx, filters, params)
}

// History lists delivered (success) or failed orders, or both when success is nil.
func (s *service) History(ctx context.Context, actor authz.Actor, success *bool, params pagination.Params) (*OrderListResult, error) {
	filters := OrderFilters{
		Statuses:    []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusFailed},
		WithHistory: true,
	}
	if success != nil {
		if *success {
			filters.Statuses = []enums.OrderStatus{enums.OrderStatusDelivered}
		} else {
			filters.Statuses = []enums.OrderStatus{enums.OrderStatusFailed}
		}
	}
	if !s.authz.CanListAllOrders(actor) {
		if actor.UserID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
		}
		userID := actor.UserID
		filters.UserID = &userID
	}
	return s.list(ctx, filters, params)
}

func (s *service) list(ctx context.Context, filters OrderFilters, params pagination.Params) (*OrderListResult, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListOrders(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	result := &OrderListResult{Orders: make([]OrderSummaryDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Orders = append(result.Orders, newOrderSummaryDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) UpdateCustomerInfo(ctx context.Context, actor authz.Actor, orderID uuid.UUID, patch types.ShippingPatch) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if patch.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no customer fields supplied")
	}

	err := s.withVersionRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Lookup(err, "order")
		}
		if err := authz.Require(s.authz.CanEditCustomerInfo(actor, order.UserID), "only the owner or back office can edit customer info"); err != nil {
			return err
		}
		if order.Status.LocksCustomerInfo() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "customer info cannot be changed once an order is %s", order.Status)
		}

		shipping := order.Shipping
		patch.Apply(&shipping)
		if err := validateShipping(shipping); err != nil {
			return err
		}
		updates := map[string]any{
			"shipping_full_name":    shipping.FullName,
			"shipping_phone":        shipping.Phone,
			"shipping_email":        strings.ToLower(shipping.Email),
			"shipping_address_line": shipping.AddressLine,
			"shipping_ward":         shipping.Ward,
			"shipping_district":     shipping.District,
			"shipping_city":         shipping.City,
		}
		if patch.Note != nil {
			updates["note"] = normalizeNote(patch.Note)
		}
		affected, err := repo.UpdateVersioned(ctx, order.ID, order.Version, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer info")
		}
		if affected == 0 {
			return errStaleVersion
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, orderID)
}

func (s *service) UpdatePaymentStatus(ctx context.Context, actor authz.Actor, orderID uuid.UUID, status enums.PaymentStatus) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", status)
	}
	if !status.ManuallySettable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refunded is set by cancelling or failing the order")
	}
	if err := authz.Require(s.authz.CanRecordPayment(actor), "role cannot record payments"); err != nil {
		return nil, err
	}

	err := s.withVersionRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Lookup(err, "order")
		}
		if order.PaymentStatus == status {
			return nil
		}
		if order.PaymentStatus.Final() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status of a refunded order cannot change")
		}
		affected, err := repo.UpdateVersioned(ctx, order.ID, order.Version, map[string]any{"payment_status": status})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if affected == 0 {
			return errStaleVersion
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.NewActorRef(actor.UserID, actor.Role),
			Data: payloads.OrderPaymentRecordedEvent{
				OrderID: order.ID,
				From:    order.PaymentStatus,
				To:      status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, orderID)
}

// ExpirePending cancels unpaid pending orders created before cutoff as the
// system actor, which credits their stock back. It returns how many were cancelled.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	rows, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired pending orders")
	}
	note := ExpiredNote
	expired := 0
	var errs error
	for _, order := range rows {
		dto, err := s.Transition(ctx, TransitionInput{
			OrderID: order.ID,
			Target:  enums.OrderStatusCancelled,
			Actor:   authz.System(),
			Note:    &note,
		})
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeStateConflict) || pkgerrors.Is(err, pkgerrors.CodeNotFound) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if dto.Status == enums.OrderStatusCancelled {
			expired++
		}
	}
	return expired, errs
}

// withVersionRetry replays fn in a fresh transaction while it loses version races.
func (s *service) withVersionRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		err := s.tx.WithTx(ctx, fn)
		if !errors.Is(err, errStaleVersion) {
			return err
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "order version conflict")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently, retry the request")
}

func (s *service) loadDetail(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "order")
	}
	dto := newOrderDTO(order)
	return &dto, nil
}

func validateShipping(info types.ShippingInfo) error {
	missing := []string{}
	for field, value := range map[string]string{
		"full_name":    info.FullName,
		"phone":        info.Phone,
		"address_line": info.AddressLine,
		"city":         info.City,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	details := map[string]string{}
	for _, field := range missing {
		details[field] = "required"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "shipping fields cannot be blank").WithDetails(details)
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

