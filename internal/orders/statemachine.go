package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// sequence is the forward lifecycle. Adding an intermediate status only
// requires inserting it here.
var sequence = []enums.OrderStatus{
	enums.OrderStatusPendingPayment,
	enums.OrderStatusPendingConfirmation,
	enums.OrderStatusConfirmed,
	enums.OrderStatusShipping,
	enums.OrderStatusDelivered,
}

// SideEffect names a one-time effect fired by a specific edge.
type SideEffect string

const (
	// SideEffectDelivered fires on the first entry into delivered.
	SideEffectDelivered SideEffect = "delivered_side_effects"
	// SideEffectPaymentConfirmed fires on pending_payment -> pending_confirmation.
	SideEffectPaymentConfirmed SideEffect = "payment_confirmed"
)

// Snapshot is the slice of persisted order state the state machine reads.
type Snapshot struct {
	Status      enums.OrderStatus
	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// SnapshotOf captures the fields of order the state machine depends on.
func SnapshotOf(order *models.Order) Snapshot {
	return Snapshot{
		Status:      order.Status,
		PaidAt:      order.PaidAt,
		ShippedAt:   order.ShippedAt,
		DeliveredAt: order.DeliveredAt,
		CancelledAt: order.CancelledAt,
	}
}

// Stamps are the lifecycle columns an accepted transition sets. Nil fields
// are left untouched.
type Stamps struct {
	PaidAt       *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// Columns renders the stamps as an update map.
func (s Stamps) Columns() map[string]any {
	cols := map[string]any{}
	if s.PaidAt != nil {
		cols["paid_at"] = *s.PaidAt
	}
	if s.ShippedAt != nil {
		cols["shipped_at"] = *s.ShippedAt
	}
	if s.DeliveredAt != nil {
		cols["delivered_at"] = *s.DeliveredAt
	}
	if s.CancelledAt != nil {
		cols["cancelled_at"] = *s.CancelledAt
	}
	if s.CancelReason != nil {
		cols["cancel_reason"] = *s.CancelReason
	}
	return cols
}

// Apply copies the stamps onto order.
func (s Stamps) Apply(order *models.Order) {
	if s.PaidAt != nil {
		order.PaidAt = s.PaidAt
	}
	if s.ShippedAt != nil {
		order.ShippedAt = s.ShippedAt
	}
	if s.DeliveredAt != nil {
		order.DeliveredAt = s.DeliveredAt
	}
	if s.CancelledAt != nil {
		order.CancelledAt = s.CancelledAt
	}
	if s.CancelReason != nil {
		order.CancelReason = s.CancelReason
	}
}

// Result describes an accepted transition. Changed is false for no-ops
// (re-cancel, or requesting the current status).
type Result struct {
	From        enums.OrderStatus
	To          enums.OrderStatus
	Changed     bool
	SideEffects []SideEffect
	Stamps      Stamps
}

// Has reports whether the result carries effect.
func (r Result) Has(effect SideEffect) bool {
	for _, e := range r.SideEffects {
		if e == effect {
			return true
		}
	}
	return false
}

// TransitionError is a rejected transition. Allowed lists the only legal
// targets from the current status.
type TransitionError struct {
	From      enums.OrderStatus
	Requested enums.OrderStatus
	Reason    string
	Allowed   []enums.OrderStatus
}

func (e *TransitionError) Error() string {
	return e.Reason
}

// InitialStatus is the status a new order starts in.
func InitialStatus(method enums.PaymentMethod) enums.OrderStatus {
	if method.IsAsync() {
		return enums.OrderStatusPendingPayment
	}
	return enums.OrderStatusPendingConfirmation
}

// NextStatus returns the status that follows current in the sequence.
func NextStatus(current enums.OrderStatus) (enums.OrderStatus, bool) {
	idx := sequenceIndex(current)
	if idx < 0 || idx+1 >= len(sequence) {
		return "", false
	}
	return sequence[idx+1], true
}

func sequenceIndex(status enums.OrderStatus) int {
	for i, s := range sequence {
		if s == status {
			return i
		}
	}
	return -1
}

// Transition decides whether snap may move to requested at now. It never
// touches storage; callers persist the result with a compare-and-swap on
// Result.From.
func Transition(snap Snapshot, requested enums.OrderStatus, now time.Time, reason string) (Result, error) {
	from := snap.Status
	res := Result{From: from, To: requested}

	switch from {
	case enums.OrderStatusCancelled:
		if requested == enums.OrderStatusCancelled {
			return res, nil
		}
		return res, &TransitionError{From: from, Requested: requested, Reason: "order already cancelled"}
	case enums.OrderStatusDelivered:
		return res, &TransitionError{From: from, Requested: requested, Reason: "order already delivered"}
	}

	if requested == from {
		return res, nil
	}

	if requested == enums.OrderStatusCancelled {
		res.Changed = true
		res.Stamps.CancelledAt = &now
		if r := strings.TrimSpace(reason); r != "" {
			res.Stamps.CancelReason = &r
		}
		return res, nil
	}

	fromIdx, toIdx := sequenceIndex(from), sequenceIndex(requested)
	if fromIdx >= 0 && toIdx >= 0 && toIdx != fromIdx+1 {
		next := sequence[fromIdx+1]
		return res, &TransitionError{
			From:      from,
			Requested: requested,
			Reason:    fmt.Sprintf("cannot move order from %s to %s: the only legal next status is %s", from, requested, next),
			Allowed:   []enums.OrderStatus{next, enums.OrderStatusCancelled},
		}
	}

	res.Changed = true
	applyEntryStamps(&res, snap, now)
	return res, nil
}

func applyEntryStamps(res *Result, snap Snapshot, now time.Time) {
	switch res.To {
	case enums.OrderStatusPendingConfirmation:
		if res.From == enums.OrderStatusPendingPayment {
			if snap.PaidAt == nil {
				res.Stamps.PaidAt = &now
			}
			res.SideEffects = append(res.SideEffects, SideEffectPaymentConfirmed)
		}
	case enums.OrderStatusShipping:
		if snap.ShippedAt == nil {
			res.Stamps.ShippedAt = &now
		}
	case enums.OrderStatusDelivered:
		if snap.DeliveredAt != nil {
			return
		}
		res.Stamps.DeliveredAt = &now
		if snap.ShippedAt == nil {
			res.Stamps.ShippedAt = &now
		}
		res.SideEffects = append(res.SideEffects, SideEffectDelivered)
	}
}
