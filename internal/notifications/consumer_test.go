package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type memoryGuard struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func (g *memoryGuard) Seen(ctx context.Context, consumer, key string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	k := consumer + ":" + key
	if g.seen[k] {
		return true, nil
	}
	g.seen[k] = true
	return false, nil
}

func (g *memoryGuard) Forget(ctx context.Context, consumer, key string) error {
	delete(g.seen, consumer+":"+key)
	g.deleted = append(g.deleted, key)
	return nil
}

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func notificationMessage(t *testing.T, eventID string) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payloads.NotificationRequestedEvent{
		NotificationID: uuid.New(),
		UserID:         uuid.New(),
		Type:           enums.NotificationTypeOrderDelivered,
		Title:          "Order delivered",
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, Data: data})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-1",
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(enums.EventNotificationRequested)},
	}
}

func TestConsumerSendsOnce(t *testing.T) {
	sender := &recordingSender{}
	c := &Consumer{sender: sender, idempotency: &memoryGuard{}, logg: logger.Nop()}
	msg := notificationMessage(t, uuid.NewString())

	assert.True(t, c.process(context.Background(), msg).ack)
	assert.True(t, c.process(context.Background(), msg).ack)
	assert.Len(t, sender.sent, 1)
}

func TestConsumerSkipsOtherEvents(t *testing.T) {
	sender := &recordingSender{}
	c := &Consumer{sender: sender, idempotency: &memoryGuard{}, logg: logger.Nop()}
	msg := notificationMessage(t, uuid.NewString())
	msg.Attributes["event_type"] = string(enums.EventOrderCreated)

	assert.True(t, c.process(context.Background(), msg).ack)
	assert.Empty(t, sender.sent)
}

func TestConsumerNacksAndReleasesOnSendFailure(t *testing.T) {
	guard := &memoryGuard{}
	c := &Consumer{sender: &recordingSender{err: errors.New("provider down")}, idempotency: guard, logg: logger.Nop()}
	eventID := uuid.NewString()

	result := c.process(context.Background(), notificationMessage(t, eventID))
	assert.True(t, result.nack)
	assert.Equal(t, []string{eventID}, guard.deleted)
}

func TestConsumerNacksWhenGuardUnavailable(t *testing.T) {
	c := &Consumer{sender: &recordingSender{}, idempotency: &memoryGuard{err: errors.New("redis down")}, logg: logger.Nop()}
	assert.True(t, c.process(context.Background(), notificationMessage(t, uuid.NewString())).nack)
}

func TestLogSenderNeverFails(t *testing.T) {
	require.NoError(t, LogSender{Logger: logger.Nop()}.Send(context.Background(), Message{}))
	require.NoError(t, LogSender{}.Send(context.Background(), Message{}))
}
