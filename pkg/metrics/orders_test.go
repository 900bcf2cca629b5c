package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOrderMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)
	m.IncTransition("delivered", "accepted")
	m.IncTransition("delivered", "accepted")
	m.IncStale("delivered")
	m.IncSideEffect("voucher", "cap_reached")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "order_transitions_total", "result", "accepted"); err != nil || got != 2 {
		t.Fatalf("expected 2 accepted transitions, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "order_transition_stale_total", "to", "delivered"); err != nil || got != 1 {
		t.Fatalf("expected 1 stale write, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "order_side_effects_total", "outcome", "cap_reached"); err != nil || got != 1 {
		t.Fatalf("expected 1 cap_reached, got %f (%v)", got, err)
	}
}

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.IncAck(-1)
	m.IncAck(1)
	m.IncResolution("", "callback")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "wallet_callback_acks_total", "return_code", "-1"); err != nil || got != 1 {
		t.Fatalf("expected one -1 ack, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "wallet_reconciliations_total", "strategy", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected blank strategy normalized, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var om *OrderMetrics
	om.IncTransition("shipping", "accepted")
	var pm *PaymentMetrics
	pm.IncAck(0)
	NewOrderMetrics(nil).IncStale("shipping")
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncEvent("order_delivered", OutboxPublished)
	m.IncEvent("order_delivered", OutboxRetried)
	m.IncEvent("", OutboxDeadLettered)
	m.ObserveBatch(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounter(mfs, "outbox_events_total", map[string]string{"event_type": "order_delivered", "result": OutboxRetried}); err != nil || got != 1 {
		t.Fatalf("expected one retry, got %f (%v)", got, err)
	}
	if got, err := fetchCounter(mfs, "outbox_events_total", map[string]string{"event_type": "unknown", "result": OutboxDeadLettered}); err != nil || got != 1 {
		t.Fatalf("expected blank event type normalized, got %f (%v)", got, err)
	}
	var nilMetrics *OutboxMetrics
	nilMetrics.IncEvent("x", OutboxPublished)
	nilMetrics.ObserveBatch(1)
}
