// Package paymentwatch is the buyer-side reconciliation loop: while a wallet
// payment is pending it polls the backend until the order settles, the
// marker goes stale, or the app is backgrounded.
package paymentwatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	DefaultInterval  = 3 * time.Second
	DefaultStaleness = 5 * time.Minute
	minInterval      = 2 * time.Second
	maxInterval      = 5 * time.Second
)

// Marker is the locally persisted record of a wallet payment in flight.
type Marker struct {
	OrderID   uuid.UUID
	Reference string
	StartedAt time.Time
	IsRetry   bool
}

func (m Marker) sameAttempt(other *Marker) bool {
	return other != nil && other.OrderID == m.OrderID && other.Reference == m.Reference
}

// MarkerStore holds at most one marker. Load returns (nil, nil) when empty.
type MarkerStore interface {
	Load(ctx context.Context) (*Marker, error)
	Save(ctx context.Context, marker Marker) error
	Clear(ctx context.Context) error
}

// StatusFetcher reads the order status from the backend.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, orderID uuid.UUID) (enums.OrderStatus, error)
}

// CartClearer drops the cart items reserved for the paid order.
type CartClearer interface {
	ClearReserved(ctx context.Context, orderID uuid.UUID) error
}

// FailureReason tells the buyer why the payment did not complete.
type FailureReason string

const (
	FailureCancelled FailureReason = "cancelled"
	FailureTimedOut  FailureReason = "timed_out"
)

// Surface shows poll results to the buyer.
type Surface interface {
	PaymentSucceeded(ctx context.Context, marker Marker, status enums.OrderStatus)
	PaymentFailed(ctx context.Context, marker Marker, reason FailureReason)
}

// Env is injected so tests control time and app visibility.
type Env struct {
	Now          func() time.Time
	IsForeground func() bool
}

// Outcome is the result of a single Poll.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeSuspended Outcome = "suspended"
	OutcomeDiscarded Outcome = "discarded"
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Terminal reports whether the outcome ends the current payment attempt.
func (o Outcome) Terminal() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// Config wires a Poller. Cart and Logger may be nil.
type Config struct {
	Env       Env
	Store     MarkerStore
	Fetcher   StatusFetcher
	Cart      CartClearer
	Surface   Surface
	Logger    *logger.Logger
	Interval  time.Duration
	Staleness time.Duration
}

// Poller runs one cooperative loop. Order state is never guarded here: the
// backend applies results through the same compare-and-set as the gateway.
type Poller struct {
	env       Env
	store     MarkerStore
	fetcher   StatusFetcher
	cart      CartClearer
	surface   Surface
	logg      *logger.Logger
	interval  time.Duration
	staleness time.Duration

	backgrounded atomic.Bool
	wake         chan struct{}
}

// NewPoller validates configuration and applies defaults.
func NewPoller(cfg Config) (*Poller, error) {
	if cfg.Store == nil {
		return nil, errors.New("marker store required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("status fetcher required")
	}
	if cfg.Surface == nil {
		return nil, errors.New("surface required")
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < minInterval || interval > maxInterval {
		return nil, fmt.Errorf("poll interval must be between %s and %s", minInterval, maxInterval)
	}
	staleness := cfg.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	env := cfg.Env
	if env.Now == nil {
		env.Now = time.Now
	}
	logg := cfg.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Poller{
		env:       env,
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		cart:      cfg.Cart,
		surface:   cfg.Surface,
		logg:      logg,
		interval:  interval,
		staleness: staleness,
		wake:      make(chan struct{}, 1),
	}, nil
}

// Begin records a new payment attempt, replacing any previous marker, and
// asks a running loop to poll right away.
func (p *Poller) Begin(ctx context.Context, marker Marker) error {
	if marker.OrderID == uuid.Nil {
		return errors.New("marker order id required")
	}
	if marker.StartedAt.IsZero() {
		marker.StartedAt = p.env.Now()
	}
	if err := p.store.Save(ctx, marker); err != nil {
		return fmt.Errorf("save pending payment marker: %w", err)
	}
	p.nudge()
	return nil
}

// Foreground resumes polling and triggers an immediate poll.
func (p *Poller) Foreground() {
	p.backgrounded.Store(false)
	p.nudge()
}

// Background suspends polling until Foreground is called.
func (p *Poller) Background() {
	p.backgrounded.Store(true)
}

func (p *Poller) nudge() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) foreground() bool {
	if p.backgrounded.Load() {
		return false
	}
	return p.env.IsForeground == nil || p.env.IsForeground()
}

// Poll performs one reconciliation step.
func (p *Poller) Poll(ctx context.Context) (Outcome, error) {
	marker, err := p.store.Load(ctx)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("load pending payment marker: %w", err)
	}
	if marker == nil {
		return OutcomeIdle, nil
	}
	if !p.foreground() {
		return OutcomeSuspended, nil
	}

	ctx = p.logg.WithFields(p.logg.WithOrderID(ctx, marker.OrderID.String()), map[string]any{
		"reference": marker.Reference,
	})

	status, fetchErr := p.fetcher.FetchStatus(ctx, marker.OrderID)

	current, err := p.store.Load(ctx)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("reload pending payment marker: %w", err)
	}
	if !marker.sameAttempt(current) {
		p.logg.Debug(ctx, "pending payment marker changed during poll; result discarded")
		return OutcomeDiscarded, nil
	}

	if fetchErr != nil {
		if p.stale(*marker) {
			return p.fail(ctx, *marker, FailureTimedOut)
		}
		return OutcomePending, fetchErr
	}

	switch {
	case status == enums.OrderStatusCancelled:
		return p.fail(ctx, *marker, FailureCancelled)
	case status != enums.OrderStatusPendingPayment:
		return p.succeed(ctx, *marker, status)
	case p.stale(*marker):
		return p.fail(ctx, *marker, FailureTimedOut)
	default:
		return OutcomePending, nil
	}
}

func (p *Poller) stale(marker Marker) bool {
	return p.env.Now().Sub(marker.StartedAt) > p.staleness
}

func (p *Poller) succeed(ctx context.Context, marker Marker, status enums.OrderStatus) (Outcome, error) {
	if err := p.store.Clear(ctx); err != nil {
		return OutcomePending, fmt.Errorf("clear pending payment marker: %w", err)
	}
	if p.cart != nil {
		if err := p.cart.ClearReserved(ctx, marker.OrderID); err != nil {
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "failed to clear reserved cart")
		}
	}
	p.logg.Info(p.logg.WithField(ctx, "status", status), "wallet payment confirmed")
	p.surface.PaymentSucceeded(ctx, marker, status)
	return OutcomeSucceeded, nil
}

func (p *Poller) fail(ctx context.Context, marker Marker, reason FailureReason) (Outcome, error) {
	if err := p.store.Clear(ctx); err != nil {
		return OutcomePending, fmt.Errorf("clear pending payment marker: %w", err)
	}
	p.logg.Info(p.logg.WithField(ctx, "reason", reason), "wallet payment did not complete")
	p.surface.PaymentFailed(ctx, marker, reason)
	return OutcomeFailed, nil
}

// Run polls on the configured interval until ctx is done. Ticks are skipped
// while backgrounded; Foreground and Begin poll immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.foreground() {
				continue
			}
		case <-p.wake:
		}
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "payment status poll failed")
		}
	}
}
