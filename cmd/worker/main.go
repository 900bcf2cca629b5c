package main

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/dedup"
)

// Pub/Sub redelivers for at most seven days.
const deliveryDedupTTL = 7 * 24 * time.Hour

func main() {
	proc := bootstrap.Start("worker")
	setup := context.Background()

	dbClient := proc.Database(setup)
	redisClient := proc.Redis(setup)
	pubsubClient := proc.PubSub(setup)
	proc.Must("notifications subscription",
		pubsubClient.CheckSubscription(setup, proc.Config.PubSub.NotificationsSubscription))

	guard, err := dedup.NewGuard(redisClient, deliveryDedupTTL)
	proc.Must("dedup guard", err)

	notifConsumer, err := notifications.NewConsumer(
		notifications.LogSender{Logger: proc.Logger},
		pubsubClient.NotificationsSubscription(),
		guard,
		proc.Logger,
	)
	proc.Must("notification consumer", err)

	service, err := NewService(ServiceParams{
		Logger: proc.Logger,
		DB:     dbClient,
		Redis:  redisClient,
		PubSub: pubsubClient,
		Consumers: map[string]consumer{
			proc.Config.PubSub.NotificationsSubscription: notifConsumer,
		},
	})
	proc.Must("worker service", err)

	ctx, stop := proc.Context(map[string]any{
		"subscription": proc.Config.PubSub.NotificationsSubscription,
	})
	defer stop()
	proc.Run(ctx, service.Run)
}
