package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/app"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
)

const shutdownGrace = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
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

	port := os.Getenv("PORT")
	if port == "" {
		port = proc.Config.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(
			proc.Config,
			proc.Logger,
			dbClient,
			redisClient,
			services.Orders,
			services.Payments,
			services.Callbacks,
			services.Vouchers,
			services.Notifications,
			promhttp.Handler(),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := proc.Context(map[string]any{"addr": server.Addr})
	defer stop()
	proc.Run(ctx, func(ctx context.Context) error { return serve(ctx, server) })
}

// serve runs server until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}
