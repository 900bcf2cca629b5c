package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultNotifyTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Recipient is the buyer profile a notification is addressed to.
type Recipient struct {
	UserID      uuid.UUID
	DisplayName string
}

// UserDirectory looks buyers up in the user service.
type UserDirectory interface {
	Lookup(ctx context.Context, userID uuid.UUID) (*Recipient, error)
}

// NotifierParams wires the order notifier.
type NotifierParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Users   UserDirectory
	Logger  *logger.Logger
	Timeout time.Duration
}

// Notifier sends best-effort order notifications. Every send runs on its own
// goroutine and never reports back to the caller.
type Notifier struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	users   UserDirectory
	logg    *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier validates dependencies. Users may be nil.
func NewNotifier(params NotifierParams) (*Notifier, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Notifier{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		users:   params.Users,
		logg:    params.Logger,
		timeout: timeout,
	}, nil
}

// OrderDelivered tells the buyer their order arrived.
func (n *Notifier) OrderDelivered(ctx context.Context, order models.Order) {
	n.dispatch(ctx, order, enums.NotificationTypeOrderDelivered, "Order delivered",
		"Hi%s, your order %s has been delivered.")
}

// PaymentConfirmed tells the buyer the wallet payment went through.
func (n *Notifier) PaymentConfirmed(ctx context.Context, order models.Order) {
	n.dispatch(ctx, order, enums.NotificationTypePaymentConfirmed, "Payment received",
		"Hi%s, we received the payment for order %s.")
}

// Wait blocks until in-flight sends finish. Used on shutdown and in tests.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, order models.Order, kind enums.NotificationType, title, format string) {
	n.wg.Add(1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer n.wg.Done()
		logCtx := n.logg.WithFields(n.logg.WithOrderID(detached, order.ID.String()), map[string]any{
			"notification_type": kind,
			"user_id":           order.BuyerID.String(),
		})
		defer func() {
			if r := recover(); r != nil {
				n.logg.Error(logCtx, "notification send panicked", fmt.Errorf("panic: %v", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		if err := n.send(sendCtx, order, kind, title, format); err != nil {
			n.logg.Error(logCtx, "notification send failed", err)
			return
		}
		n.logg.Info(logCtx, "notification queued")
	}()
}

func (n *Notifier) send(ctx context.Context, order models.Order, kind enums.NotificationType, title, format string) error {
	greeting := ""
	if n.users != nil {
		recipient, err := n.users.Lookup(ctx, order.BuyerID)
		switch {
		case err != nil:
			n.logg.Warn(n.logg.WithField(ctx, "error", err.Error()), "user lookup failed; sending without name")
		case recipient != nil && strings.TrimSpace(recipient.DisplayName) != "":
			greeting = " " + strings.TrimSpace(recipient.DisplayName)
		}
	}

	orderID := order.ID
	notification := &models.Notification{
		ID:        uuid.New(),
		UserID:    order.BuyerID,
		OrderID:   &orderID,
		Type:      kind,
		Title:     title,
		Message:   fmt.Sprintf(format, greeting, order.Code),
		CreatedAt: time.Now().UTC(),
	}
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := n.repo.WithTx(tx).Create(ctx, notification); err != nil {
			return err
		}
		return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   notification.ID,
			Actor:         outbox.SystemActor("notifier"),
			Data: payloads.NotificationRequestedEvent{
				NotificationID: notification.ID,
				UserID:         notification.UserID,
				OrderID:        notification.OrderID,
				Type:           notification.Type,
				Title:          notification.Title,
			},
		})
	})
}
