package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StrategyExact      = "exact"
	StrategyPartial    = "partial"
	StrategyTimeWindow = "time_window"
	strategyNone       = "none"
)

// Strategy resolves a gateway reference to an order. A miss is (nil, nil).
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, ref Reference) (*models.Order, error)
}

// OrderFinder is what the default strategies need from the order store.
type OrderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCode(ctx context.Context, code string) (*models.Order, error)
	ListPendingWallet(ctx context.Context, limit int) ([]models.Order, error)
}

// DefaultStrategies returns the ordered resolution list: exact, partial, time window.
func DefaultStrategies(finder OrderFinder, scanCap int, window time.Duration) []Strategy {
	return []Strategy{
		ExactStrategy{finder: finder},
		PartialStrategy{finder: finder, scanCap: scanCap},
		TimeWindowStrategy{finder: finder, scanCap: scanCap, window: window},
	}
}

// ExactStrategy matches the reference suffix against order id, then order code.
type ExactStrategy struct {
	finder OrderFinder
}

func (ExactStrategy) Name() string { return StrategyExact }

func (s ExactStrategy) Resolve(ctx context.Context, ref Reference) (*models.Order, error) {
	if ref.Suffix == "" {
		return nil, nil
	}
	if id, ok := ref.OrderID(); ok {
		order, err := s.finder.FindByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	order, err := s.finder.FindByCode(ctx, strings.ToUpper(ref.Suffix))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// minPartialFragment is the shortest reference fragment, and the shortest
// order field, the partial strategy will match on.
const minPartialFragment = 8

// PartialStrategy scans pending wallet orders for an id, code or stored
// payment reference that contains, or is contained by, the reference. A
// reference that hits more than one order resolves nothing.
type PartialStrategy struct {
	finder  OrderFinder
	scanCap int
}

func (PartialStrategy) Name() string { return StrategyPartial }

func (s PartialStrategy) Resolve(ctx context.Context, ref Reference) (*models.Order, error) {
	needles := partialNeedles(ref)
	if len(needles) == 0 {
		return nil, nil
	}
	candidates, err := s.finder.ListPendingWallet(ctx, s.scanCap)
	if err != nil {
		return nil, err
	}
	var match *models.Order
	for i := range candidates {
		order := &candidates[i]
		if !partialHit(order, needles) {
			continue
		}
		if match != nil {
			return nil, nil
		}
		match = order
	}
	return match, nil
}

// partialNeedles keeps the lowercased fragments long enough to identify one
// order. The raw reference only counts when its suffix does too, otherwise
// the shared timestamp prefix would carry the match.
func partialNeedles(ref Reference) []string {
	suffix := strings.ToLower(strings.TrimSpace(ref.Suffix))
	if len(suffix) < minPartialFragment {
		return nil
	}
	needles := []string{suffix}
	if raw := strings.ToLower(ref.Raw); raw != suffix {
		needles = append(needles, raw)
	}
	return needles
}

func partialHit(order *models.Order, needles []string) bool {
	fields := []string{strings.ToLower(order.ID.String()), strings.ToLower(order.Code)}
	if order.PaymentRef != nil {
		fields = append(fields, strings.ToLower(*order.PaymentRef))
	}
	for _, field := range nonEmpty(fields...) {
		if len(field) < minPartialFragment {
			continue
		}
		for _, needle := range needles {
			if strings.Contains(field, needle) || strings.Contains(needle, field) {
				return true
			}
		}
	}
	return false
}

// TimeWindowStrategy picks the most recent pending wallet order created within
// the window around the timestamp embedded in the reference. Two orders inside
// the same window resolve to the newer one.
type TimeWindowStrategy struct {
	finder  OrderFinder
	scanCap int
	window  time.Duration
}

func (TimeWindowStrategy) Name() string { return StrategyTimeWindow }

func (s TimeWindowStrategy) Resolve(ctx context.Context, ref Reference) (*models.Order, error) {
	if !ref.HasTimestamp || s.window <= 0 {
		return nil, nil
	}
	candidates, err := s.finder.ListPendingWallet(ctx, s.scanCap)
	if err != nil {
		return nil, err
	}
	var best *models.Order
	for i := range candidates {
		order := &candidates[i]
		delta := order.CreatedAt.Sub(ref.InitiatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > s.window {
			continue
		}
		if best == nil || order.CreatedAt.After(best.CreatedAt) {
			best = order
		}
	}
	return best, nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
