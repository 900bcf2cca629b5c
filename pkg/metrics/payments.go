package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records wallet reconciliation outcomes.
type PaymentMetrics struct {
	acks        *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	acks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_callback_acks_total",
		Help: "Acknowledgements returned to the wallet gateway by return code.",
	}, []string{"return_code"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_reconciliations_total",
		Help: "Payment reconciliations by resolving strategy and source.",
	}, []string{"strategy", "source"})
	reg.MustRegister(acks, resolutions)
	return &PaymentMetrics{acks: acks, resolutions: resolutions}
}

// IncAck counts one acknowledgement.
func (m *PaymentMetrics) IncAck(returnCode int) {
	if m == nil || m.acks == nil {
		return
	}
	m.acks.WithLabelValues(strconv.Itoa(returnCode)).Inc()
}

// IncResolution counts which strategy matched an order; "none" on a miss.
func (m *PaymentMetrics) IncResolution(strategy, source string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(strategy), normalizeLabel(source)).Inc()
}
