package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateVoucher      OutboxAggregateType = "voucher"
	AggregateNotification OutboxAggregateType = "notification"
)

var aggregateTypes = values[OutboxAggregateType]{AggregateOrder, AggregateVoucher, AggregateNotification}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderDelivered        OutboxEventType = "order_delivered"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventPaymentReconciled     OutboxEventType = "payment_reconciled"
	EventPaymentFailed         OutboxEventType = "payment_failed"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var eventTypes = values[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderDelivered,
	EventOrderCancelled,
	EventPaymentReconciled,
	EventPaymentFailed,
	EventNotificationRequested,
}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// OutboxDLQErrorReason records why a row left the publish loop.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
