package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

const queryFailureConsumer = "wallet-query-failure"

type orderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForBuyer(ctx context.Context, buyerID, id uuid.UUID) (*models.Order, error)
	RecordPaymentAttempt(ctx context.Context, id uuid.UUID, ref string) (*models.Order, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error)
}

// ServiceParams wires the buyer-facing wallet service. Guard may be nil.
type ServiceParams struct {
	Orders     orderReader
	Gateway    Gateway
	Reconciler reconciler
	Guard      idempotencyGuard
	Logger     *logger.Logger
	Clock      func() time.Time
}

// Service starts wallet payments and pulls their status from the gateway when
// the callback has not arrived.
type Service struct {
	orders     orderReader
	gateway    Gateway
	reconciler reconciler
	guard      idempotencyGuard
	logg       *logger.Logger
	now        func() time.Time
}

// Initiation is returned to the buyer client, which persists it as its
// pending-payment marker.
type Initiation struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reference   string    `json:"reference"`
	OrderURL    string    `json:"order_url"`
	Attempt     int       `json:"attempt"`
	IsRetry     bool      `json:"is_retry"`
	InitiatedAt time.Time `json:"initiated_at"`
}

// SyncResult describes one gateway status pull.
type SyncResult struct {
	Order         *models.Order
	GatewayStatus GatewayStatus
	Outcome       Outcome
}

// NewService validates dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("wallet gateway required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		orders:     params.Orders,
		gateway:    params.Gateway,
		reconciler: params.Reconciler,
		guard:      params.Guard,
		logg:       params.Logger,
		now:        clock,
	}, nil
}

// InitiateWallet records a new payment attempt and registers it with the gateway.
// Calling it again for the same order is a retry with a fresh reference.
func (s *Service) InitiateWallet(ctx context.Context, buyerID, orderID uuid.UUID) (*Initiation, error) {
	order, err := s.orders.GetForBuyer(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodWallet {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not paid by wallet")
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"current_status": order.Status})
	}

	now := s.now()
	ref := NewReference(now, order.ID)
	updated, err := s.orders.RecordPaymentAttempt(ctx, order.ID, ref)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"reference": ref,
		"attempt":   updated.PaymentAttempts,
	})
	created, err := s.gateway.CreateOrder(ctx, CreateOrderRequest{
		AppTransID:  ref,
		AppUser:     buyerID.String(),
		Amount:      updated.Total,
		Description: fmt.Sprintf("Payment for order %s", updated.Code),
		EmbedData:   map[string]any{"order_id": updated.ID.String(), "order_code": updated.Code},
		Items:       gatewayItems(updated.Items),
	})
	if err != nil {
		s.logg.Error(ctx, "wallet order creation failed", err)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create wallet order")
	}
	s.logg.Info(ctx, "wallet payment initiated")

	return &Initiation{
		OrderID:     updated.ID,
		Reference:   ref,
		OrderURL:    created.OrderURL,
		Attempt:     updated.PaymentAttempts,
		IsRetry:     updated.PaymentAttempts > 1,
		InitiatedAt: now,
	}, nil
}

// PaymentStatus returns the buyer's order after asking the gateway about a
// still-pending wallet payment. Gateway trouble is logged and the stored
// status is returned so the client keeps polling.
func (s *Service) PaymentStatus(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetForBuyer(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	result, err := s.Sync(ctx, order, SourceQuery)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"error": err.Error(),
		}), "wallet status query failed")
		return order, nil
	}
	return result.Order, nil
}

// Sync pulls the gateway status for a pending wallet order and applies it
// through the reconciliation coordinator.
func (s *Service) Sync(ctx context.Context, order *models.Order, source string) (*SyncResult, error) {
	result := &SyncResult{Order: order}
	if order.PaymentMethod != enums.PaymentMethodWallet ||
		order.Status != enums.OrderStatusPendingPayment ||
		order.PaymentRef == nil || strings.TrimSpace(*order.PaymentRef) == "" {
		return result, nil
	}
	ref := *order.PaymentRef

	queried, err := s.gateway.QueryOrder(ctx, ref)
	if err != nil {
		return result, err
	}
	result.GatewayStatus = queried.Status

	input := ReconcileInput{
		Reference:      ref,
		GatewayTransID: queried.ZPTransID,
		Amount:         queried.Amount,
		Source:         source,
	}
	switch queried.Status {
	case GatewayStatusPaid:
		input.Succeeded = true
	case GatewayStatusFailed:
		if s.guard != nil {
			duplicate, err := s.guard.Seen(ctx, queryFailureConsumer, ref)
			if err == nil && duplicate {
				return result, nil
			}
		}
	default:
		return result, nil
	}

	reconciled, err := s.reconciler.Reconcile(ctx, input)
	if err != nil {
		return result, err
	}
	result.Outcome = reconciled.Outcome

	fresh, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		return result, err
	}
	result.Order = fresh
	return result, nil
}

func gatewayItems(items []models.OrderLineItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"itemid":       item.ProductID.String(),
			"itemname":     item.Name,
			"itemprice":    item.UnitPrice,
			"itemquantity": item.Quantity,
		})
	}
	return out
}
