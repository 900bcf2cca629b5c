package paymentwatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// LogSurface reports outcomes through the structured logger. Done, when set,
// is called after every terminal outcome.
type LogSurface struct {
	Logger *logger.Logger
	Done   func()
}

func (s LogSurface) PaymentSucceeded(ctx context.Context, marker Marker, status enums.OrderStatus) {
	s.Logger.Info(s.Logger.WithFields(ctx, map[string]any{
		"order_id": marker.OrderID.String(),
		"status":   status,
	}), "payment received, your order is being prepared")
	if s.Done != nil {
		s.Done()
	}
}

func (s LogSurface) PaymentFailed(ctx context.Context, marker Marker, reason FailureReason) {
	s.Logger.Warn(s.Logger.WithFields(ctx, map[string]any{
		"order_id": marker.OrderID.String(),
		"reason":   reason,
	}), "payment was not completed, please retry from the order page")
	if s.Done != nil {
		s.Done()
	}
}

// CartClearerFunc adapts a function to CartClearer.
type CartClearerFunc func(ctx context.Context, orderID uuid.UUID) error

func (f CartClearerFunc) ClearReserved(ctx context.Context, orderID uuid.UUID) error {
	return f(ctx, orderID)
}
