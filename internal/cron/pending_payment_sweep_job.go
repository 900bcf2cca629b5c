package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	defaultSweepLimit  = 100
	defaultSweepMinAge = time.Minute
	defaultSweepMaxAge = 24 * time.Hour
)

type pendingWalletLister interface {
	ListPendingWalletCreatedBetween(ctx context.Context, from, to time.Time, after *pagination.Cursor, limit int) ([]models.Order, error)
}

type walletSyncer interface {
	Sync(ctx context.Context, order *models.Order, source string) (*payments.SyncResult, error)
}

// PendingPaymentSweepJobParams configures the sweep. Orders younger than
// MinAge are left to the callback and the buyer's poller. Limit is the page
// size; every run walks the whole MinAge..MaxAge band.
type PendingPaymentSweepJobParams struct {
	Logger   *logger.Logger
	Orders   pendingWalletLister
	Payments walletSyncer
	MinAge   time.Duration
	MaxAge   time.Duration
	Limit    int
	Now      func() time.Time
}

// NewPendingPaymentSweepJob asks the gateway about wallet orders whose
// callback never arrived and applies the answer through the coordinator.
func NewPendingPaymentSweepJob(params PendingPaymentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultSweepMinAge
	}
	maxAge := params.MaxAge
	if maxAge <= minAge {
		maxAge = defaultSweepMaxAge
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &pendingPaymentSweepJob{
		logg:     params.Logger,
		orders:   params.Orders,
		payments: params.Payments,
		minAge:   minAge,
		maxAge:   maxAge,
		limit:    limit,
		now:      now,
	}, nil
}

type pendingPaymentSweepJob struct {
	logg     *logger.Logger
	orders   pendingWalletLister
	payments walletSyncer
	minAge   time.Duration
	maxAge   time.Duration
	limit    int
	now      func() time.Time
}

func (j *pendingPaymentSweepJob) Name() string { return "pending-payment-sweep" }

func (j *pendingPaymentSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	from, to := now.Add(-j.maxAge), now.Add(-j.minAge)

	var (
		errs   error
		seen   int
		cursor *pagination.Cursor
	)
	counts := map[string]int{}
	for {
		rows, err := j.orders.ListPendingWalletCreatedBetween(ctx, from, to, cursor, j.limit)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list pending wallet orders: %w", err))
		}
		page := pagination.Trim(rows, j.limit, orders.CursorOf)
		for i := range page.Items {
			order := &page.Items[i]
			seen++
			result, err := j.payments.Sync(ctx, order, payments.SourceSweep)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
				counts["errors"]++
				continue
			}
			switch {
			case result.Outcome != "":
				counts[string(result.Outcome)]++
			default:
				counts["still_pending"]++
			}
		}
		if page.NextCursor == "" || ctx.Err() != nil {
			break
		}
		next := orders.CursorOf(page.Items[len(page.Items)-1])
		cursor = &next
	}

	fields := map[string]any{
		"candidates": seen,
		"from":       from,
		"to":         to,
	}
	for k, v := range counts {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "pending payment sweep complete")
	return multierr.Append(errs, ctx.Err())
}
