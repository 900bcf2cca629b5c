package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderDelivered   NotificationType = "order_delivered"
	NotificationTypePaymentConfirmed NotificationType = "payment_confirmed"
)

var notificationTypes = values[NotificationType]{
	NotificationTypeOrderDelivered,
	NotificationTypePaymentConfirmed,
}

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }
