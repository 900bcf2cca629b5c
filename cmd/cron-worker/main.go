package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/app"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	proc := bootstrap.Start("cron-worker")
	setup := context.Background()

	dbClient := proc.Database(setup)
	redisClient := proc.Redis(setup)

	services, err := app.Build(app.Params{
		Config:     proc.Config,
		Logger:     proc.Logger,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	proc.Must("storefront services", err)
	proc.Defer("notifier", func() error { services.Notifier.Wait(); return nil })

	registry, err := buildRegistry(proc.Config, proc.Logger, dbClient, services)
	proc.Must("cron jobs", err)

	lock, err := cron.NewRedisLock(redisClient, lockName(proc.Config.App.Env), proc.Config.Cron.LockTTL)
	proc.Must("cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   proc.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: proc.Config.Cron.Interval,
	})
	proc.Must("cron service", err)

	ctx, stop := proc.Context(map[string]any{"jobs": len(registry.Jobs())})
	defer stop()
	proc.Run(ctx, service.Run)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *app.Services) (*cron.Registry, error) {
	sweep, err := cron.NewPendingPaymentSweepJob(cron.PendingPaymentSweepJobParams{
		Logger:   logg,
		Orders:   services.OrdersRepo,
		Payments: services.Payments,
		MinAge:   cfg.Reconciliation.SweepMinAge,
		MaxAge:   cfg.Reconciliation.SweepMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("pending payment sweep: %w", err)
	}
	outboxRetention, err := cron.NewRetentionJob(logg, dbClient,
		cron.OutboxRetention(services.Outbox, cfg.Outbox.RetentionDays, cfg.Outbox.MaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("outbox retention: %w", err)
	}
	notificationCleanup, err := cron.NewRetentionJob(logg, dbClient,
		cron.NotificationRetention(services.NotifyRepo, 0))
	if err != nil {
		return nil, fmt.Errorf("notification cleanup: %w", err)
	}
	return cron.NewRegistry(sweep, outboxRetention, notificationCleanup)
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
