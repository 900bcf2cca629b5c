package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// LineItemView is the API shape of an order line.
type LineItemView struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"product_id"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	Name          string     `json:"name"`
	Color         string     `json:"color,omitempty"`
	Size          string     `json:"size,omitempty"`
	Quantity      int        `json:"quantity"`
	UnitPrice     int64      `json:"unit_price"`
	Subtotal      int64      `json:"subtotal"`
	DiscountShare int64      `json:"discount_share"`
}

// OrderView is the API shape of an order.
type OrderView struct {
	ID              uuid.UUID           `json:"id"`
	Code            string              `json:"code"`
	BuyerID         uuid.UUID           `json:"buyer_id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Subtotal        int64               `json:"subtotal"`
	Discount        int64               `json:"discount"`
	Total           int64               `json:"total"`
	VoucherCode     *string             `json:"voucher_code,omitempty"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentRef      *string             `json:"payment_ref,omitempty"`
	PaymentAttempts int                 `json:"payment_attempts"`
	NextStatus      *enums.OrderStatus  `json:"next_status,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason    *string             `json:"cancel_reason,omitempty"`
	Items           []LineItemView      `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderListView wraps a page of orders.
type OrderListView struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// PaymentStatusView is returned to the polling client.
type PaymentStatusView struct {
	OrderID uuid.UUID         `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
	PaidAt  *time.Time        `json:"paid_at,omitempty"`
}

// NewOrderView maps a persisted order to its API shape.
func NewOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:              order.ID,
		Code:            order.Code,
		BuyerID:         order.BuyerID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		Total:           order.Total,
		VoucherCode:     order.VoucherCode,
		ShippingAddress: order.ShippingAddress,
		PaymentRef:      order.PaymentRef,
		PaymentAttempts: order.PaymentAttempts,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CancelReason:    order.CancelReason,
		Items:           make([]LineItemView, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if next, ok := NextStatus(order.Status); ok {
		view.NextStatus = &next
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, LineItemView{
			ID:            item.ID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			CategoryID:    item.CategoryID,
			Name:          item.Name,
			Color:         item.Color,
			Size:          item.Size,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Subtotal:      item.Subtotal(),
			DiscountShare: item.DiscountShare,
		})
	}
	return view
}

// NewOrderListView maps a page of orders.
func NewOrderListView(orders []models.Order, nextCursor string) OrderListView {
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, NewOrderView(&orders[i]))
	}
	return OrderListView{Orders: views, NextCursor: nextCursor}
}
