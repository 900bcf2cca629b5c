// Package app assembles the storefront services shared by the api and
// cron-worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/fulfillment"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/dedup"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

// Params are the process-level resources every service hangs off. Redis may
// be nil, in which case callback deduplication falls back to the order
// status guard alone.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Gateway    payments.Gateway
	Clock      func() time.Time
}

// Services is the wired storefront.
type Services struct {
	Orders        orders.Service
	OrdersRepo    orders.Repository
	Vouchers      vouchers.Service
	Notifications notifications.Service
	NotifyRepo    notifications.Repository
	Notifier      *notifications.Notifier
	Payments      *payments.Service
	Callbacks     *payments.Coordinator
	Outbox        *outbox.Repository
}

// Build wires repositories, the order state machine, fulfillment effects and
// the wallet reconciliation coordinator. Gateway defaults to the HTTP client
// configured from Config.Wallet.
func Build(params Params) (*Services, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg := params.Config
	logg := params.Logger
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	gormDB := params.DB.DB()

	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	voucherSvc, err := vouchers.NewService(vouchers.NewRepository(gormDB), clock)
	if err != nil {
		return nil, fmt.Errorf("vouchers service: %w", err)
	}

	notificationsRepo := notifications.NewRepository(gormDB)
	notificationsSvc, err := notifications.NewService(notificationsRepo, clock)
	if err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}
	notifier, err := notifications.NewNotifier(notifications.NotifierParams{
		Repo:   notificationsRepo,
		Tx:     params.DB,
		Outbox: outboxSvc,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	ledger, err := inventory.NewLedger(inventory.NewRepository(gormDB))
	if err != nil {
		return nil, fmt.Errorf("inventory ledger: %w", err)
	}
	orderMetrics := metrics.NewOrderMetrics(params.Registerer)
	effects, err := fulfillment.NewCoordinator(fulfillment.Params{
		Vouchers:  voucherSvc,
		Inventory: ledger,
		Notifier:  notifier,
		Metrics:   orderMetrics,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("fulfillment coordinator: %w", err)
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       params.DB,
		Outbox:   outboxSvc,
		Vouchers: voucherSvc,
		Effects:  effects,
		Metrics:  orderMetrics,
		Logger:   logg,
		Clock:    clock,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	gateway := params.Gateway
	if gateway == nil {
		client, err := payments.NewGatewayClient(payments.GatewayConfig{
			AppID:       cfg.Wallet.AppID,
			Key1:        cfg.Wallet.Key1,
			Endpoint:    cfg.Wallet.Endpoint,
			CallbackURL: cfg.Wallet.CallbackURL,
			Timeout:     cfg.Wallet.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("wallet gateway: %w", err)
		}
		gateway = client
	}

	var guard *dedup.Guard
	if params.Redis != nil {
		guard, err = dedup.NewGuard(params.Redis, cfg.Reconciliation.CallbackTTL)
		if err != nil {
			return nil, fmt.Errorf("callback idempotency: %w", err)
		}
	}

	coordinator, err := payments.NewCoordinator(payments.CoordinatorParams{
		Strategies: payments.DefaultStrategies(ordersRepo, cfg.Reconciliation.PartialScanCap, cfg.Reconciliation.MatchWindow),
		Orders:     ordersSvc,
		Tx:         params.DB,
		Outbox:     outboxSvc,
		Guard:      guardOrNil(guard),
		Metrics:    metrics.NewPaymentMetrics(params.Registerer),
		Logger:     logg,
		Key2:       cfg.Wallet.Key2,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("payment coordinator: %w", err)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Orders:     ordersSvc,
		Gateway:    gateway,
		Reconciler: coordinator,
		Guard:      guardOrNil(guard),
		Logger:     logg,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	return &Services{
		Orders:        ordersSvc,
		OrdersRepo:    ordersRepo,
		Vouchers:      voucherSvc,
		Notifications: notificationsSvc,
		NotifyRepo:    notificationsRepo,
		Notifier:      notifier,
		Payments:      paymentsSvc,
		Callbacks:     coordinator,
		Outbox:        outboxRepo,
	}, nil
}

// callbackGuard matches the guard both payment components accept.
type callbackGuard interface {
	Seen(ctx context.Context, consumer, key string) (bool, error)
	Forget(ctx context.Context, consumer, key string) error
}

// guardOrNil keeps a nil *dedup.Guard from turning into a non-nil interface.
func guardOrNil(g *dedup.Guard) callbackGuard {
	if g == nil {
		return nil
	}
	return g
}
