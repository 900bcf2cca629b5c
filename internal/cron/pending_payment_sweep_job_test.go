package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// fakePendingLister serves orders newest first in keyset pages with one
// lookahead row, the way the orders repository does.
type fakePendingLister struct {
	from, to time.Time
	limit    int
	calls    int
	orders   []models.Order
}

func (f *fakePendingLister) ListPendingWalletCreatedBetween(ctx context.Context, from, to time.Time, after *pagination.Cursor, limit int) ([]models.Order, error) {
	f.from, f.to, f.limit = from, to, limit
	f.calls++
	start := 0
	if after != nil {
		for i, o := range f.orders {
			if o.ID == after.ID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit+1, len(f.orders))
	return f.orders[start:end], nil
}

type fakeSyncer struct {
	outcomes map[uuid.UUID]payments.Outcome
	failures map[uuid.UUID]error
	sources  []string
	synced   []uuid.UUID
}

func (f *fakeSyncer) Sync(ctx context.Context, order *models.Order, source string) (*payments.SyncResult, error) {
	f.sources = append(f.sources, source)
	f.synced = append(f.synced, order.ID)
	if err := f.failures[order.ID]; err != nil {
		return nil, err
	}
	return &payments.SyncResult{Order: order, Outcome: f.outcomes[order.ID]}, nil
}

var sweepNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// pendingBand returns n orders inside the sweep band, newest first.
func pendingBand(n int) []models.Order {
	out := make([]models.Order, n)
	for i := range out {
		out[i] = models.Order{ID: uuid.New(), CreatedAt: sweepNow.Add(-time.Duration(i+2) * time.Minute)}
	}
	return out
}

func TestPendingPaymentSweepContinuesPastFailures(t *testing.T) {
	band := pendingBand(3)
	broken, paid := band[0].ID, band[1].ID
	lister := &fakePendingLister{orders: band}
	syncer := &fakeSyncer{
		outcomes: map[uuid.UUID]payments.Outcome{paid: payments.OutcomeReconciled},
		failures: map[uuid.UUID]error{broken: errors.New("gateway timeout")},
	}

	job, err := NewPendingPaymentSweepJob(PendingPaymentSweepJobParams{
		Logger:   logger.Nop(),
		Orders:   lister,
		Payments: syncer,
		MinAge:   time.Minute,
		MaxAge:   time.Hour,
		Now:      func() time.Time { return sweepNow },
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.ErrorContains(t, err, "gateway timeout")
	assert.Len(t, syncer.sources, 3)
	for _, source := range syncer.sources {
		assert.Equal(t, payments.SourceSweep, source)
	}
	assert.True(t, lister.from.Equal(sweepNow.Add(-time.Hour)))
	assert.True(t, lister.to.Equal(sweepNow.Add(-time.Minute)))
	assert.Equal(t, defaultSweepLimit, lister.limit)
}

func TestPendingPaymentSweepPagesThroughBand(t *testing.T) {
	band := pendingBand(7)
	lister := &fakePendingLister{orders: band}
	syncer := &fakeSyncer{}

	job, err := NewPendingPaymentSweepJob(PendingPaymentSweepJobParams{
		Logger:   logger.Nop(),
		Orders:   lister,
		Payments: syncer,
		Limit:    3,
		Now:      func() time.Time { return sweepNow },
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	want := make([]uuid.UUID, 0, len(band))
	for _, o := range band {
		want = append(want, o.ID)
	}
	assert.Equal(t, want, syncer.synced, "every order in the band is synced once, newest first")
	assert.Equal(t, 3, lister.calls)
}

func TestNewPendingPaymentSweepJobRequiresDependencies(t *testing.T) {
	_, err := NewPendingPaymentSweepJob(PendingPaymentSweepJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}
