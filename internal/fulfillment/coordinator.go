// Package fulfillment applies the one-time effects of an order reaching
// delivered: voucher usage, stock decrements and the buyer notification.
package fulfillment

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type voucherRedeemer interface {
	Redeem(ctx context.Context, code string) (bool, error)
}

type stockLedger interface {
	Decrement(ctx context.Context, ref inventory.ItemRef, qty int) (*models.ProductVariant, error)
}

// Notifier sends buyer notifications without blocking the caller.
type Notifier interface {
	OrderDelivered(ctx context.Context, order models.Order)
	PaymentConfirmed(ctx context.Context, order models.Order)
}

// Params wires the coordinator. Notifier and Metrics may be nil.
type Params struct {
	Vouchers  voucherRedeemer
	Inventory stockLedger
	Notifier  Notifier
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
}

// Coordinator runs after the winning transition has committed. Failures are
// logged and never undo the transition.
type Coordinator struct {
	vouchers  voucherRedeemer
	inventory stockLedger
	notifier  Notifier
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
}

// NewCoordinator validates dependencies.
func NewCoordinator(params Params) (*Coordinator, error) {
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher redeemer required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Coordinator{
		vouchers:  params.Vouchers,
		inventory: params.Inventory,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// OrderDelivered consumes the delivered side-effect signal. It runs to
// completion even when ctx is already canceled.
func (c *Coordinator) OrderDelivered(ctx context.Context, order models.Order) {
	ctx = context.WithoutCancel(ctx)
	ctx = c.logg.WithFields(c.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"order_code": order.Code,
	})

	c.redeemVoucher(ctx, order)
	c.decrementStock(ctx, order)

	if c.notifier != nil {
		c.notifier.OrderDelivered(ctx, order)
		c.metrics.IncSideEffect("notification", "dispatched")
	}
	c.logg.Info(ctx, "delivery side effects applied")
}

// PaymentConfirmed forwards the payment confirmation to the buyer.
func (c *Coordinator) PaymentConfirmed(ctx context.Context, order models.Order) {
	if c.notifier == nil {
		return
	}
	c.notifier.PaymentConfirmed(ctx, order)
	c.metrics.IncSideEffect("notification", "dispatched")
}

func (c *Coordinator) redeemVoucher(ctx context.Context, order models.Order) {
	if order.VoucherCode == nil || *order.VoucherCode == "" {
		return
	}
	logCtx := c.logg.WithField(ctx, "voucher_code", *order.VoucherCode)
	applied, err := c.vouchers.Redeem(ctx, *order.VoucherCode)
	switch {
	case err != nil:
		c.metrics.IncSideEffect("voucher", "error")
		c.logg.Error(logCtx, "voucher usage increment failed", err)
	case !applied:
		c.metrics.IncSideEffect("voucher", "cap_reached")
		c.logg.Warn(logCtx, "voucher usage cap already reached; usage not counted")
	default:
		c.metrics.IncSideEffect("voucher", "applied")
	}
}

func (c *Coordinator) decrementStock(ctx context.Context, order models.Order) {
	for _, item := range order.Items {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"line_item_id": item.ID.String(),
			"product_id":   item.ProductID.String(),
			"color":        item.Color,
			"size":         item.Size,
			"quantity":     item.Quantity,
		})
		variant, err := c.inventory.Decrement(ctx, inventory.RefFor(item), item.Quantity)
		if err != nil {
			c.metrics.IncSideEffect("inventory", "error")
			c.logg.Error(logCtx, "stock decrement failed", err)
			continue
		}
		c.metrics.IncSideEffect("inventory", "applied")
		c.logg.Debug(c.logg.WithFields(logCtx, map[string]any{
			"variant_id": variant.ID.String(),
			"stock":      variant.Stock,
			"status":     variant.Status,
		}), "stock decremented")
	}
}
