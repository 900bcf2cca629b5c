package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// VoucherQuoter prices a voucher code against an order subtotal.
type VoucherQuoter interface {
	DiscountFor(ctx context.Context, code string, amount int64, categoryIDs []uuid.UUID) (int64, error)
}

// SideEffectHandler receives one-time effects after the winning transition
// commits. Implementations log their own failures.
type SideEffectHandler interface {
	OrderDelivered(ctx context.Context, order models.Order)
	PaymentConfirmed(ctx context.Context, order models.Order)
}

// Service exposes order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForBuyer(ctx context.Context, buyerID, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, input ListInput) (*pagination.Page[models.Order], error)
	Transition(ctx context.Context, input TransitionInput) (*TransitionOutcome, error)
	Cancel(ctx context.Context, buyerID, id uuid.UUID, reason string) (*TransitionOutcome, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordPaymentAttempt(ctx context.Context, id uuid.UUID, ref string) (*models.Order, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Vouchers VoucherQuoter
	Effects  SideEffectHandler
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	vouchers VoucherQuoter
	effects  SideEffectHandler
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// CreateItemInput is one line of a new order.
type CreateItemInput struct {
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	CategoryID    *uuid.UUID
	Name          string
	Color         string
	Size          string
	Quantity      int
	UnitPrice     int64
	DiscountShare int64
}

// CreateInput carries a checkout request. Total, when set, must equal the
// line subtotals minus Discount.
type CreateInput struct {
	BuyerID         uuid.UUID
	Code            string
	PaymentMethod   enums.PaymentMethod
	VoucherCode     *string
	Discount        int64
	Total           *int64
	ShippingAddress string
	Items           []CreateItemInput
	Actor           *outbox.ActorRef
}

// ListInput filters the order listing.
type ListInput struct {
	BuyerID *uuid.UUID
	Status  *enums.OrderStatus
	Limit   int
	Cursor  string
}

// TransitionInput requests a status change.
type TransitionInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Reason  string
	Actor   *outbox.ActorRef
	// Precondition runs on the freshly loaded order before the state machine.
	Precondition func(order *models.Order) error
	// Columns are written together with the status.
	Columns map[string]any
	// InTx runs inside the transaction after the status write succeeded.
	InTx func(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// TransitionOutcome is the order after the transition plus the decision.
type TransitionOutcome struct {
	Order  *models.Order
	Result Result
}

// NewService validates dependencies and returns the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		vouchers: params.Vouchers,
		effects:  params.Effects,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      clock,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}

	orderID := uuid.New()
	items := make([]models.OrderLineItem, 0, len(input.Items))
	weights := make([]int64, 0, len(input.Items))
	categories := make([]uuid.UUID, 0, len(input.Items))
	var shares int64
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: product id required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		if item.UnitPrice < 0 || item.DiscountShare < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: amounts must not be negative", i))
		}
		line := models.OrderLineItem{
			ID:            uuid.New(),
			OrderID:       orderID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			CategoryID:    item.CategoryID,
			Name:          strings.TrimSpace(item.Name),
			Color:         strings.TrimSpace(item.Color),
			Size:          strings.TrimSpace(item.Size),
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			DiscountShare: item.DiscountShare,
		}
		items = append(items, line)
		weights = append(weights, line.Subtotal())
		shares += item.DiscountShare
		if item.CategoryID != nil {
			categories = append(categories, *item.CategoryID)
		}
	}
	subtotal := money.Sum(weights)

	discount := input.Discount
	if discount < 0 || discount > subtotal {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between zero and the order subtotal")
	}

	voucherCode := normalizeCodePtr(input.VoucherCode)
	if voucherCode != nil {
		if s.vouchers == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "voucher pricing unavailable")
		}
		allowed, err := s.vouchers.DiscountFor(ctx, *voucherCode, subtotal, categories)
		if err != nil {
			return nil, err
		}
		switch {
		case discount == 0:
			discount = allowed
		case discount > allowed:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds voucher allowance").
				WithDetails(map[string]any{"allowed_discount": allowed})
		}
	}

	total := subtotal - discount
	if input.Total != nil && *input.Total != total {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total does not match items and discount").
			WithDetails(map[string]any{"expected_total": total})
	}

	switch {
	case shares == 0 && discount > 0:
		for i, share := range money.Allocate(discount, weights) {
			items[i].DiscountShare = share
		}
	case shares != discount:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item discount shares must add up to the order discount")
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	now := s.now()
	if code == "" {
		code = generateCode(now)
	}

	order := &models.Order{
		ID:              orderID,
		Code:            code,
		BuyerID:         input.BuyerID,
		Status:          InitialStatus(input.PaymentMethod),
		PaymentMethod:   input.PaymentMethod,
		Subtotal:        subtotal,
		Discount:        discount,
		Total:           total,
		VoucherCode:     voucherCode,
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "orders_code_key") || dbpkg.IsUniqueViolation(err, "orders.code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order code already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				Code:          order.Code,
				BuyerID:       order.BuyerID,
				PaymentMethod: order.PaymentMethod,
				Status:        order.Status,
				Total:         order.Total,
				Discount:      order.Discount,
				VoucherCode:   order.VoucherCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"code":           order.Code,
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"total":          order.Total,
	})
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	return order, nil
}

// GetForBuyer hides orders owned by someone else behind a not found error.
func (s *service) GetForBuyer(ctx context.Context, buyerID, id uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*pagination.Page[models.Order], error) {
	filters := ListFilters{
		BuyerID: input.BuyerID,
		Status:  input.Status,
		Limit:   input.Limit,
	}
	if input.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filters.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.Trim(rows, input.Limit, CursorOf)
	return &page, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionOutcome, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status required")
	}

	now := s.now()
	outcome := &TransitionOutcome{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if input.Precondition != nil {
			if err := input.Precondition(order); err != nil {
				return err
			}
		}

		result, err := Transition(SnapshotOf(order), input.Status, now, input.Reason)
		if err != nil {
			return err
		}
		outcome.Result = result
		outcome.Order = order
		if !result.Changed {
			return nil
		}

		updates := result.Stamps.Columns()
		for k, v := range input.Columns {
			updates[k] = v
		}
		updates["status"] = result.To
		updates["updated_at"] = now
		if err := repo.UpdateStatus(ctx, order.ID, result.From, updates); err != nil {
			return err
		}
		order.Status = result.To
		order.UpdatedAt = now
		result.Stamps.Apply(order)

		if input.InTx != nil {
			if err := input.InTx(ctx, tx, order); err != nil {
				return err
			}
		}
		return s.emitTransition(ctx, tx, order, result, input, now)
	})
	if err != nil {
		return nil, s.mapTransitionErr(ctx, input, err)
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, input.OrderID.String()), map[string]any{
		"from": outcome.Result.From,
		"to":   outcome.Result.To,
	})
	if !outcome.Result.Changed {
		s.metrics.IncTransition(string(input.Status), "noop")
		s.logg.Debug(logCtx, "order transition was a no-op")
		return outcome, nil
	}
	s.metrics.IncTransition(string(input.Status), "accepted")
	s.logg.Info(logCtx, "order status changed")

	s.dispatchSideEffects(ctx, outcome)
	return outcome, nil
}

func (s *service) dispatchSideEffects(ctx context.Context, outcome *TransitionOutcome) {
	if s.effects == nil {
		return
	}
	// The transition is committed; its effects outlive the caller's request.
	ctx = context.WithoutCancel(ctx)
	order := *outcome.Order
	if outcome.Result.Has(SideEffectPaymentConfirmed) {
		s.effects.PaymentConfirmed(ctx, order)
	}
	if outcome.Result.Has(SideEffectDelivered) {
		s.effects.OrderDelivered(ctx, order)
	}
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, order *models.Order, result Result, input TransitionInput, now time.Time) error {
	events := []outbox.DomainEvent{{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         input.Actor,
		OccurredAt:    now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:   order.ID,
			Code:      order.Code,
			BuyerID:   order.BuyerID,
			From:      result.From,
			To:        result.To,
			ChangedAt: now,
		},
	}}
	if result.To == enums.OrderStatusCancelled {
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    now,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				Code:        order.Code,
				BuyerID:     order.BuyerID,
				From:        result.From,
				CancelledAt: now,
				Reason:      strings.TrimSpace(input.Reason),
			},
		})
	}
	if result.Has(SideEffectDelivered) {
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    now,
			Data: payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				Code:        order.Code,
				BuyerID:     order.BuyerID,
				VoucherCode: order.VoucherCode,
				ItemCount:   len(order.Items),
				DeliveredAt: now,
			},
		})
	}
	return s.outbox.Emit(ctx, tx, events...)
}

func (s *service) mapTransitionErr(ctx context.Context, input TransitionInput, err error) error {
	var transitionErr *TransitionError
	switch {
	case errors.As(err, &transitionErr):
		s.metrics.IncTransition(string(input.Status), "rejected")
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, transitionErr, transitionErr.Reason).
			WithDetails(map[string]any{
				"current_status":   transitionErr.From,
				"requested_status": transitionErr.Requested,
				"allowed_next":     transitionErr.Allowed,
			})
	case errors.Is(err, ErrStaleStatus):
		s.metrics.IncStale(string(input.Status))
		s.logg.Warn(s.logg.WithOrderID(ctx, input.OrderID.String()), "order transition lost compare-and-swap")
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order status changed concurrently")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition order")
	}
}

// Cancel lets the buyer cancel an order that has not been confirmed yet.
func (s *service) Cancel(ctx context.Context, buyerID, id uuid.UUID, reason string) (*TransitionOutcome, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.Transition(ctx, TransitionInput{
		OrderID: id,
		Status:  enums.OrderStatusCancelled,
		Reason:  reason,
		Actor:   outbox.UserActor(buyerID, enums.RoleBuyer),
		Precondition: func(order *models.Order) error {
			if order.BuyerID != buyerID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			switch order.Status {
			case enums.OrderStatusPendingPayment, enums.OrderStatusPendingConfirmation, enums.OrderStatusCancelled:
				return nil
			default:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled by the buyer").
					WithDetails(map[string]any{"current_status": order.Status})
			}
		},
	})
}

// Delete hard-deletes a cancelled order.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deleted, err := repo.DeleteCancelled(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if deleted {
			s.logg.Info(s.logg.WithOrderID(ctx, id.String()), "cancelled order deleted")
			return nil
		}
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupErr(err)
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled orders can be deleted").
			WithDetails(map[string]any{"current_status": order.Status})
	})
}

// RecordPaymentAttempt stores ref as the latest wallet reference.
func (s *service) RecordPaymentAttempt(ctx context.Context, id uuid.UUID, ref string) (*models.Order, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.RecordPaymentAttempt(ctx, id, ref); err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
		}
		found, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupErr(err)
		}
		order = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CursorOf is the keyset position of an order in created_at, id order.
func CursorOf(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

func mapLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func normalizeCodePtr(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(*code))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// generateCode builds a human-facing order code such as SF260115-3FA9C1.
func generateCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "SF" + now.Format("060102") + "-" + suffix
}
