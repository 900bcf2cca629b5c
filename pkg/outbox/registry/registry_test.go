package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelope(t, payloads.OrderCreatedEvent{
			OrderID:       orderID,
			Code:          "SF-000123",
			BuyerID:       uuid.New(),
			PaymentMethod: enums.PaymentMethodWallet,
			Status:        enums.OrderStatusPendingPayment,
			Total:         280000,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.EqualValues(t, 280000, payload.Total)
}

func TestResolveRoutesNotifications(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload: envelope(t, payloads.NotificationRequestedEvent{
			NotificationID: uuid.New(),
			UserID:         uuid.New(),
			OrderID:        &orderID,
			Type:           enums.NotificationTypeOrderDelivered,
			Title:          "Your order has arrived",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "notifications-topic", resolved.Descriptor.Topic)
	assert.IsType(t, &payloads.NotificationRequestedEvent{}, resolved.Payload)
}

func TestResolveRejectsPermanently(t *testing.T) {
	cases := map[string]models.OutboxEvent{
		"unknown event type": {
			EventType:     enums.OutboxEventType("reservation_released"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, map[string]string{"reason": "none"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateVoucher,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, map[string]string{}),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       envelope(t, map[string]string{}),
		},
		"null data": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, nil),
		},
		"wrong data shape": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, []int{1, 2}),
		},
		"broken envelope": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}
	reg := newTestRegistry(t)
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			assert.True(t, IsPermanent(err), "got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	assert.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{NotificationsTopic: "notifications"})
	assert.Error(t, err)
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:        "orders-topic",
		NotificationsTopic: "notifications-topic",
	})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(assert.AnError))

	wrapped := Permanent(assert.AnError)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)
}
