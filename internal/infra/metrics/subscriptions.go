package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileTotal,
		webhookEventsTotal,
	)
}

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_reconcile_total",
			Help: "Subscription reconciliation outcomes by trigger.",
		},
		[]string{"trigger", "outcome"}, // outcome: created, updated, unchanged, stale, dropped, failed
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_webhook_events_total",
			Help: "Payment provider webhook events by type and result.",
		},
		[]string{"type", "result"},
	)
)

func IncReconcile(trigger, outcome string) {
	reconcileTotal.WithLabelValues(norm(trigger), norm(outcome)).Inc()
}

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}
