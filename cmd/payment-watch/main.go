// Command payment-watch follows one wallet payment from the buyer's side until
// the order leaves pending_payment or the attempt goes stale.
//
//	payment-watch -order <uuid> -reference <app_trans_id> [-retry]
//
// Without -order it resumes the marker left by a previous run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/internal/paymentwatch"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type options struct {
	orderID   uuid.UUID
	reference string
	retry     bool
}

func parseOptions(args []string) (*options, error) {
	fs := flag.NewFlagSet("payment-watch", flag.ContinueOnError)
	order := fs.String("order", "", "order id returned by checkout")
	reference := fs.String("reference", "", "payment reference from the initiation response")
	retry := fs.Bool("retry", false, "the attempt is a retry of an earlier payment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts := &options{reference: strings.TrimSpace(*reference), retry: *retry}
	if strings.TrimSpace(*order) == "" {
		if opts.reference != "" {
			return nil, errors.New("-reference requires -order")
		}
		return opts, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*order))
	if err != nil {
		return nil, fmt.Errorf("invalid -order: %w", err)
	}
	if opts.reference == "" {
		return nil, errors.New("-reference is required with -order")
	}
	opts.orderID = id
	return opts, nil
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "payment-watch"})
	_ = godotenv.Load()

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		logg.Error(context.Background(), "invalid arguments", err)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		logg.Error(context.Background(), "failed to load client config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "payment-watch",
		Level:       logger.ParseLevel(cfg.LogLevel),
	})

	store, err := paymentwatch.OpenSQLiteMarkerStore(cfg.MarkerPath)
	if err != nil {
		logg.Error(context.Background(), "failed to open marker store", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(context.Background(), "error closing marker store", err)
		}
	}()

	fetcher, err := paymentwatch.NewHTTPStatusFetcher(cfg.APIBaseURL, cfg.AccessToken, cfg.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to build status fetcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	poller, err := paymentwatch.NewPoller(paymentwatch.Config{
		Store:     store,
		Fetcher:   fetcher,
		Surface:   paymentwatch.LogSurface{Logger: logg, Done: stop},
		Logger:    logg,
		Interval:  cfg.PollInterval,
		Staleness: cfg.Staleness,
	})
	if err != nil {
		logg.Error(ctx, "failed to build poller", err)
		os.Exit(1)
	}

	if opts.orderID != uuid.Nil {
		marker := paymentwatch.Marker{OrderID: opts.orderID, Reference: opts.reference, IsRetry: opts.retry}
		if err := poller.Begin(ctx, marker); err != nil {
			logg.Error(ctx, "failed to record payment attempt", err)
			os.Exit(1)
		}
	} else {
		marker, err := store.Load(ctx)
		if err != nil {
			logg.Error(ctx, "failed to read marker store", err)
			os.Exit(1)
		}
		if marker == nil {
			logg.Info(ctx, "no payment in flight")
			return
		}
		poller.Foreground()
	}

	logg.Info(logg.WithField(ctx, "api", cfg.APIBaseURL), "watching payment")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payment watch stopped unexpectedly", err)
		os.Exit(1)
	}
}
