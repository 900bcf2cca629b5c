package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var machineNow = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, enums.OrderStatusPendingConfirmation, InitialStatus(enums.PaymentMethodCOD))
	assert.Equal(t, enums.OrderStatusPendingPayment, InitialStatus(enums.PaymentMethodWallet))
}

func TestTransitionTable(t *testing.T) {
	statuses := []enums.OrderStatus{
		enums.OrderStatusPendingPayment,
		enums.OrderStatusPendingConfirmation,
		enums.OrderStatusConfirmed,
		enums.OrderStatusShipping,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	}
	legal := map[enums.OrderStatus]enums.OrderStatus{
		enums.OrderStatusPendingPayment:      enums.OrderStatusPendingConfirmation,
		enums.OrderStatusPendingConfirmation: enums.OrderStatusConfirmed,
		enums.OrderStatusConfirmed:           enums.OrderStatusShipping,
		enums.OrderStatusShipping:            enums.OrderStatusDelivered,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				res, err := Transition(Snapshot{Status: from}, to, machineNow, "")

				switch {
				case from == enums.OrderStatusDelivered:
					var te *TransitionError
					require.ErrorAs(t, err, &te)
					assert.Equal(t, "order already delivered", te.Reason)
				case from == enums.OrderStatusCancelled && to != enums.OrderStatusCancelled:
					var te *TransitionError
					require.ErrorAs(t, err, &te)
					assert.Equal(t, "order already cancelled", te.Reason)
				case from == to:
					require.NoError(t, err)
					assert.False(t, res.Changed)
				case to == enums.OrderStatusCancelled:
					require.NoError(t, err)
					assert.True(t, res.Changed)
					assert.Empty(t, res.SideEffects)
				case legal[from] == to:
					require.NoError(t, err)
					assert.True(t, res.Changed)
				default:
					var te *TransitionError
					require.ErrorAs(t, err, &te)
					assert.Contains(t, te.Allowed, legal[from])
				}
			})
		}
	}
}

func TestTransitionConfirmedToDeliveredNamesShipping(t *testing.T) {
	_, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed}, enums.OrderStatusDelivered, machineNow, "")

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Reason, "shipping")
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusShipping, enums.OrderStatusCancelled}, te.Allowed)
}

func TestTransitionStampsPaymentConfirmation(t *testing.T) {
	res, err := Transition(Snapshot{Status: enums.OrderStatusPendingPayment}, enums.OrderStatusPendingConfirmation, machineNow, "")
	require.NoError(t, err)

	require.NotNil(t, res.Stamps.PaidAt)
	assert.Equal(t, machineNow, *res.Stamps.PaidAt)
	assert.True(t, res.Has(SideEffectPaymentConfirmed))
	assert.False(t, res.Has(SideEffectDelivered))
}

func TestTransitionShippingStampsOnce(t *testing.T) {
	res, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed}, enums.OrderStatusShipping, machineNow, "")
	require.NoError(t, err)
	require.NotNil(t, res.Stamps.ShippedAt)

	earlier := machineNow.Add(-time.Hour)
	res, err = Transition(Snapshot{Status: enums.OrderStatusConfirmed, ShippedAt: &earlier}, enums.OrderStatusShipping, machineNow, "")
	require.NoError(t, err)
	assert.Nil(t, res.Stamps.ShippedAt)
}

func TestTransitionDeliveredEmitsSideEffects(t *testing.T) {
	shipped := machineNow.Add(-2 * time.Hour)
	res, err := Transition(Snapshot{Status: enums.OrderStatusShipping, ShippedAt: &shipped}, enums.OrderStatusDelivered, machineNow, "")
	require.NoError(t, err)

	assert.True(t, res.Has(SideEffectDelivered))
	require.NotNil(t, res.Stamps.DeliveredAt)
	assert.Nil(t, res.Stamps.ShippedAt)
	assert.Equal(t, map[string]any{"delivered_at": machineNow}, res.Stamps.Columns())
}

func TestTransitionDeliveredBackfillsShippedAt(t *testing.T) {
	res, err := Transition(Snapshot{Status: "handed_to_carrier"}, enums.OrderStatusDelivered, machineNow, "")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	require.NotNil(t, res.Stamps.ShippedAt)
	assert.Equal(t, machineNow, *res.Stamps.ShippedAt)
	assert.True(t, res.Has(SideEffectDelivered))
}

func TestTransitionUnknownStatusPassesThrough(t *testing.T) {
	res, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed}, "awaiting_pickup", machineNow, "")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Empty(t, res.SideEffects)
	assert.Empty(t, res.Stamps.Columns())
}

func TestTransitionCancelFromShippingHasNoSideEffects(t *testing.T) {
	res, err := Transition(Snapshot{Status: enums.OrderStatusShipping}, enums.OrderStatusCancelled, machineNow, "  lost parcel ")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Empty(t, res.SideEffects)
	require.NotNil(t, res.Stamps.CancelledAt)
	require.NotNil(t, res.Stamps.CancelReason)
	assert.Equal(t, "lost parcel", *res.Stamps.CancelReason)
}

func TestTransitionRecancelKeepsOriginalTimestamp(t *testing.T) {
	original := machineNow.Add(-24 * time.Hour)
	res, err := Transition(Snapshot{Status: enums.OrderStatusCancelled, CancelledAt: &original}, enums.OrderStatusCancelled, machineNow, "again")
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Nil(t, res.Stamps.CancelledAt)
	assert.Empty(t, res.Stamps.Columns())
}

func TestNextStatus(t *testing.T) {
	next, ok := NextStatus(enums.OrderStatusConfirmed)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusShipping, next)

	_, ok = NextStatus(enums.OrderStatusDelivered)
	assert.False(t, ok)
	_, ok = NextStatus(enums.OrderStatusCancelled)
	assert.False(t, ok)
}
