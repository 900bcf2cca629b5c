package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records order state machine and fulfillment outcomes.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	staleWrites *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transition requests by target status and result.",
	}, []string{"to", "result"})
	staleWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transition_stale_total",
		Help: "Transitions that lost the compare-and-swap on persisted status.",
	}, []string{"to"})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_side_effects_total",
		Help: "Fulfillment side effects by kind and outcome.",
	}, []string{"effect", "outcome"})
	reg.MustRegister(transitions, staleWrites, sideEffects)
	return &OrderMetrics{
		transitions: transitions,
		staleWrites: staleWrites,
		sideEffects: sideEffects,
	}
}

// IncTransition counts a transition request; result is accepted, rejected or noop.
func (m *OrderMetrics) IncTransition(to, result string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to), normalizeLabel(result)).Inc()
}

// IncStale counts a lost compare-and-swap.
func (m *OrderMetrics) IncStale(to string) {
	if m == nil || m.staleWrites == nil {
		return
	}
	m.staleWrites.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncSideEffect counts a voucher, inventory or notification effect.
func (m *OrderMetrics) IncSideEffect(effect, outcome string) {
	if m == nil || m.sideEffects == nil {
		return
	}
	m.sideEffects.WithLabelValues(normalizeLabel(effect), normalizeLabel(outcome)).Inc()
}
