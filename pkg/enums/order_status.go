package enums

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPendingPayment      OrderStatus = "pending_payment"
	OrderStatusPendingConfirmation OrderStatus = "pending_confirmation"
	OrderStatusConfirmed           OrderStatus = "confirmed"
	OrderStatusShipping            OrderStatus = "shipping"
	OrderStatusDelivered           OrderStatus = "delivered"
	OrderStatusCancelled           OrderStatus = "cancelled"
)

var orderStatuses = values[OrderStatus]{
	OrderStatusPendingPayment,
	OrderStatusPendingConfirmation,
	OrderStatusConfirmed,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// IsTerminal reports whether no further transition is legal from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ParseOrderStatus rejects unknown values. Rows already stored with a legacy
// status are handled by the state machine, not here.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	return orderStatuses.parse("order status", raw)
}
