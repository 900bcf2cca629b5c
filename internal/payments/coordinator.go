package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

const (
	callbackConsumer = "wallet-callback"

	SourceCallback = "callback"
	SourceQuery    = "query"
	SourceSweep    = "sweep"
)

var gatewayActor = outbox.SystemActor("wallet_gateway")

// Outcome classifies what a reconciliation did.
type Outcome string

const (
	OutcomeReconciled Outcome = "reconciled"
	OutcomeFailed     Outcome = "failed_recorded"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeNotPayable Outcome = "not_payable"
)

// ReconcileInput is a settled (or failed) payment reported by the gateway.
type ReconcileInput struct {
	Reference      string
	GatewayTransID string
	Amount         int64
	Succeeded      bool
	Source         string
}

// ReconcileResult reports the resolved order and the strategy that found it.
type ReconcileResult struct {
	Outcome  Outcome
	Strategy string
	Order    *models.Order
}

type orderTransitioner interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*orders.TransitionOutcome, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

type idempotencyGuard interface {
	Seen(ctx context.Context, consumer, key string) (bool, error)
	Forget(ctx context.Context, consumer, key string) error
}

// CoordinatorParams wires the reconciliation coordinator. Guard and Metrics may be nil.
type CoordinatorParams struct {
	Strategies []Strategy
	Orders     orderTransitioner
	Tx         txRunner
	Outbox     outboxPublisher
	Guard      idempotencyGuard
	Metrics    *metrics.PaymentMetrics
	Logger     *logger.Logger
	Key2       string
	Clock      func() time.Time
}

// Coordinator maps gateway payment results onto orders. Every path into the
// order goes through the state machine CAS, so replays are harmless.
type Coordinator struct {
	strategies []Strategy
	orders     orderTransitioner
	tx         txRunner
	outbox     outboxPublisher
	guard      idempotencyGuard
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
	key2       string
	now        func() time.Time
}

// NewCoordinator validates dependencies.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if len(params.Strategies) == 0 {
		return nil, fmt.Errorf("at least one resolution strategy required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order transitioner required")
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
	if strings.TrimSpace(params.Key2) == "" {
		return nil, fmt.Errorf("callback key required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		strategies: params.Strategies,
		orders:     params.Orders,
		tx:         params.Tx,
		outbox:     params.Outbox,
		guard:      params.Guard,
		metrics:    params.Metrics,
		logg:       params.Logger,
		key2:       params.Key2,
		now:        clock,
	}, nil
}

// HandleCallback verifies and applies one gateway callback. It never fails:
// every body, however malformed, gets an Ack.
func (c *Coordinator) HandleCallback(ctx context.Context, body []byte) Ack {
	ack := c.handleCallback(ctx, body)
	c.metrics.IncAck(ack.ReturnCode)
	return ack
}

func (c *Coordinator) handleCallback(ctx context.Context, body []byte) Ack {
	data, err := ParseCallback(body, c.key2)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "rejected wallet callback")
		if errors.Is(err, errMACMismatch) {
			return Ack{ReturnCode: AckInvalid, ReturnMessage: "mac not equal"}
		}
		return Ack{ReturnCode: AckInvalid, ReturnMessage: "invalid callback payload"}
	}

	key := strings.TrimSpace(data.ZPTransID.String())
	if key == "" {
		key = data.AppTransID
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"app_trans_id": data.AppTransID,
		"zp_trans_id":  data.ZPTransID.String(),
	})

	claimed := false
	if c.guard != nil {
		duplicate, err := c.guard.Seen(ctx, callbackConsumer, key)
		switch {
		case err != nil:
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "callback idempotency guard unavailable")
		case duplicate:
			c.logg.Info(ctx, "duplicate wallet callback skipped")
			return Ack{ReturnCode: AckDuplicate, ReturnMessage: "already processed"}
		default:
			claimed = true
		}
	}
	release := func() {
		if !claimed {
			return
		}
		if err := c.guard.Forget(ctx, callbackConsumer, key); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "failed to release callback idempotency key")
		}
	}

	result, err := c.Reconcile(ctx, ReconcileInput{
		Reference:      data.AppTransID,
		GatewayTransID: data.ZPTransID.String(),
		Amount:         data.Amount,
		Succeeded:      data.Succeeded(),
		Source:         SourceCallback,
	})
	if err != nil {
		release()
		c.logg.Error(ctx, "wallet callback reconciliation failed", err)
		return Ack{ReturnCode: AckNotFound, ReturnMessage: "temporarily unable to process"}
	}

	switch result.Outcome {
	case OutcomeReconciled, OutcomeFailed:
		return Ack{ReturnCode: AckProcessed, ReturnMessage: "success"}
	case OutcomeDuplicate:
		return Ack{ReturnCode: AckDuplicate, ReturnMessage: "already processed"}
	case OutcomeNotPayable:
		return Ack{ReturnCode: AckDuplicate, ReturnMessage: "order is no longer awaiting payment"}
	default:
		release()
		return Ack{ReturnCode: AckNotFound, ReturnMessage: "order not found"}
	}
}

// Reconcile resolves the reference and applies the result to the order.
func (c *Coordinator) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	ref := ParseReference(input.Reference)
	order, strategy, err := c.resolve(ctx, ref)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve payment reference")
	}
	c.metrics.IncResolution(strategy, input.Source)
	if order == nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"reference": ref.Raw,
			"source":    input.Source,
		}), "payment reference did not resolve to an order")
		return &ReconcileResult{Outcome: OutcomeNotFound, Strategy: strategy}, nil
	}

	ctx = c.logg.WithFields(c.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"strategy": strategy,
		"source":   input.Source,
	})
	result := &ReconcileResult{Strategy: strategy, Order: order}

	if order.PaymentMethod != enums.PaymentMethodWallet {
		c.logg.Warn(ctx, "payment reference resolved to a non-wallet order")
		result.Outcome = OutcomeNotPayable
		return result, nil
	}
	if input.Amount > 0 && input.Amount != order.Total {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"gateway_amount": input.Amount,
			"order_total":    order.Total,
		}), "wallet amount does not match order total")
	}

	if !input.Succeeded {
		return c.recordFailure(ctx, result, ref, input)
	}

	switch order.Status {
	case enums.OrderStatusPendingPayment:
	case enums.OrderStatusCancelled:
		c.logg.Warn(ctx, "payment settled for a cancelled order")
		result.Outcome = OutcomeNotPayable
		return result, nil
	default:
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	columns := map[string]any{}
	if id := strings.TrimSpace(input.GatewayTransID); id != "" {
		columns["gateway_trans_id"] = id
	}
	outcome, err := c.orders.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusPendingConfirmation,
		Actor:   gatewayActor,
		Columns: columns,
		InTx: func(ctx context.Context, tx *gorm.DB, updated *models.Order) error {
			if id, ok := columns["gateway_trans_id"].(string); ok {
				updated.GatewayTransID = &id
			}
			return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentReconciled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   updated.ID,
				Actor:         gatewayActor,
				OccurredAt:    c.now(),
				Data: payloads.PaymentReconciledEvent{
					OrderID:        updated.ID,
					PaymentRef:     ref.Raw,
					GatewayTransID: input.GatewayTransID,
					Amount:         input.Amount,
					Strategy:       strategy,
					Source:         input.Source,
				},
			})
		},
	})
	switch {
	case errors.Is(err, orders.ErrStaleStatus):
		c.logg.Info(ctx, "payment already applied by a concurrent reconciliation")
		result.Outcome = OutcomeDuplicate
		return result, nil
	case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict):
		c.logg.Warn(ctx, "order left pending_payment before the payment was applied")
		result.Outcome = OutcomeNotPayable
		return result, nil
	case err != nil:
		return nil, err
	}

	result.Order = outcome.Order
	if !outcome.Result.Changed {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}
	c.logg.Info(ctx, "wallet payment reconciled")
	result.Outcome = OutcomeReconciled
	return result, nil
}

func (c *Coordinator) recordFailure(ctx context.Context, result *ReconcileResult, ref Reference, input ReconcileInput) (*ReconcileResult, error) {
	order := result.Order
	if order.Status != enums.OrderStatusPendingPayment {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         gatewayActor,
			OccurredAt:    c.now(),
			Data: payloads.PaymentFailedEvent{
				OrderID:        order.ID,
				PaymentRef:     ref.Raw,
				GatewayTransID: input.GatewayTransID,
				Amount:         input.Amount,
				Strategy:       result.Strategy,
				Source:         input.Source,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment failure")
	}
	c.logg.Info(ctx, "wallet payment failed; order stays pending_payment")
	result.Outcome = OutcomeFailed
	return result, nil
}

func (c *Coordinator) resolve(ctx context.Context, ref Reference) (*models.Order, string, error) {
	for _, strategy := range c.strategies {
		order, err := strategy.Resolve(ctx, ref)
		if err != nil {
			return nil, strategy.Name(), err
		}
		if order != nil {
			return order, strategy.Name(), nil
		}
	}
	return nil, strategyNone, nil
}
