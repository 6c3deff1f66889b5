package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentCallsTotal,
		breakerState,
	)
}

var (
	paymentCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_payment_calls_total",
			Help: "Payment provider API calls by operation and status.",
		},
		[]string{"op", "status"}, // status: 'ok', 'failed', 'rejected'
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pawplan_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)

func IncPaymentCall(op, status string) {
	paymentCallsTotal.WithLabelValues(norm(op), norm(status)).Inc()
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(norm(name)).Set(float64(state))
}
