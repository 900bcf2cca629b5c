package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	setup := context.Background()

	dbClient := proc.Database(setup)
	pubsubClient := proc.PubSub(setup)

	eventRegistry, err := registry.NewEventRegistry(proc.Config.PubSub)
	proc.Must("event registry", err)

	service, err := NewService(ServiceParams{
		Config:     proc.Config,
		Logger:     proc.Logger,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must("outbox publisher", err)

	ctx, stop := proc.Context(map[string]any{
		"ordersTopic":        proc.Config.PubSub.OrdersTopic,
		"notificationsTopic": proc.Config.PubSub.NotificationsTopic,
	})
	defer stop()
	proc.Run(ctx, service.Run)
}
