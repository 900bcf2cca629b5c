package payloads

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent signals a new order placed through checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Code          string              `json:"code"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.OrderStatus   `json:"status"`
	Total         int64               `json:"total"`
	Discount      int64               `json:"discount"`
	VoucherCode   *string             `json:"voucher_code,omitempty"`
}

// OrderStatusChangedEvent is emitted for every accepted forward transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	Code      string            `json:"code"`
	BuyerID   uuid.UUID         `json:"buyer_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderDeliveredEvent marks the one edge that triggers fulfillment.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Code        string    `json:"code"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	VoucherCode *string   `json:"voucher_code,omitempty"`
	ItemCount   int       `json:"item_count"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled by buyer or admin.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	Code        string            `json:"code"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	From        enums.OrderStatus `json:"from"`
	CancelledAt time.Time         `json:"cancelled_at"`
	Reason      string            `json:"reason,omitempty"`
}

// PaymentReconciledEvent records a wallet payment matched to an order.
type PaymentReconciledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	PaymentRef     string    `json:"payment_ref"`
	GatewayTransID string    `json:"gateway_trans_id,omitempty"`
	Amount         int64     `json:"amount"`
	Strategy       string    `json:"strategy"`
	Source         string    `json:"source"`
}

// PaymentFailedEvent records a failed wallet attempt; the order stays pending.
type PaymentFailedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	PaymentRef     string    `json:"payment_ref"`
	GatewayTransID string    `json:"gateway_trans_id,omitempty"`
	Amount         int64     `json:"amount"`
	Strategy       string    `json:"strategy"`
	Source         string    `json:"source"`
}

// NotificationRequestedEvent tells downstream senders to push a buyer alert.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	UserID         uuid.UUID              `json:"user_id"`
	OrderID        *uuid.UUID             `json:"order_id,omitempty"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
}
