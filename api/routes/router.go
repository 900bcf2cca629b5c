package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Polling clients hit payment-status every few seconds; the limit leaves room
// for a couple of concurrent tabs.
var (
	paymentStatusPolicy = middleware.NewRateLimitPolicy("payment-status", time.Minute, 60)
	voucherCheckPolicy  = middleware.NewRateLimitPolicy("voucher-check", time.Minute, 30)
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	walletPayments ordercontrollers.WalletPayments,
	callbacks webhookcontrollers.CallbackHandler,
	vouchersSvc vouchers.Service,
	notificationsSvc notifications.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	pingers := map[string]controllers.Pinger{}
	if dbP != nil {
		pingers["db"] = dbP
	}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/wallet", webhookcontrollers.WalletWebhook(callbacks, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(idempotency(redisClient, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleBuyer, logg))

			r.Route("/v1/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Create(ordersSvc, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
				r.Post("/{orderId}/payments/wallet", ordercontrollers.InitiateWalletPayment(walletPayments, logg))
				r.With(rateLimit(paymentStatusPolicy, redisClient, logg)).
					Get("/{orderId}/payment-status", ordercontrollers.PaymentStatus(walletPayments, logg))
			})

			r.With(rateLimit(voucherCheckPolicy, redisClient, logg)).
				Post("/v1/vouchers/check", controllers.CheckVoucher(vouchersSvc, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.AdminList(ordersSvc, logg))
				r.Get("/{orderId}", ordercontrollers.AdminDetail(ordersSvc, logg))
				r.Post("/{orderId}/status", ordercontrollers.AdminTransition(ordersSvc, logg))
				r.Delete("/{orderId}", ordercontrollers.AdminDelete(ordersSvc, logg))
			})
			r.Route("/vouchers", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateVoucher(vouchersSvc, logg))
				r.Get("/{code}", controllers.AdminGetVoucher(vouchersSvc, logg))
			})
		})
	})

	return r
}

// idempotency and rateLimit keep a nil client from turning into a non-nil
// interface holding a nil pointer.
func idempotency(client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return middleware.Idempotency(nil, logg)
	}
	return middleware.Idempotency(client, logg)
}

func rateLimit(policy middleware.RateLimitPolicy, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return middleware.RateLimit(policy, nil, logg)
	}
	return middleware.RateLimit(policy, client, logg)
}
