package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const notificationSendConsumer = "notification-sender"

// Message is what a Sender delivers to the buyer's device.
type Message struct {
	EventID string
	Payload payloads.NotificationRequestedEvent
}

// Sender pushes a notification to the messaging provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records the message instead of pushing it. It is the default
// until a messaging provider is configured.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if s.Logger == nil {
		return nil
	}
	logCtx := s.Logger.WithFields(ctx, map[string]any{
		"event_id":          msg.EventID,
		"notification_id":   msg.Payload.NotificationID.String(),
		"user_id":           msg.Payload.UserID.String(),
		"notification_type": msg.Payload.Type,
	})
	s.Logger.Info(logCtx, "notification push skipped: no provider configured")
	return nil
}

type idempotencyGuard interface {
	Seen(ctx context.Context, consumer, key string) (bool, error)
	Forget(ctx context.Context, consumer, key string) error
}

// Consumer relays notification_requested events to the Sender.
type Consumer struct {
	sender       Sender
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(sender Sender, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notifications subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sender:       sender,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Info(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable message", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.Seen(ctx, notificationSendConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	if err := c.sender.Send(ctx, Message{EventID: envelope.EventID, Payload: payload}); err != nil {
		c.logg.Error(logCtx, "notification send failed", err)
		_ = c.idempotency.Forget(ctx, notificationSendConsumer, envelope.EventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}
