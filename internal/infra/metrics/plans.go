package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		quotesTotal,
		planTransitionsTotal,
		ordersTotal,
		notificationsTotal,
	)
}

var (
	quotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_quotes_total",
			Help: "Quotes computed, labeled by weight class and result.",
		},
		[]string{"weight_class", "result"},
	)

	planTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_plan_transitions_total",
			Help: "Plan lifecycle transitions by target status.",
		},
		[]string{"to"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_orders_total",
			Help: "Orders by fulfillment status transition.",
		},
		[]string{"status"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_notifications_total",
			Help: "Notifications by channel, kind and outcome.",
		},
		[]string{"channel", "kind", "outcome"},
	)
)

func IncQuote(weightClass, result string) {
	quotesTotal.WithLabelValues(norm(weightClass), norm(result)).Inc()
}

func IncPlanTransition(to string) {
	planTransitionsTotal.WithLabelValues(norm(to)).Inc()
}

func IncOrder(status string) {
	ordersTotal.WithLabelValues(norm(status)).Inc()
}

func IncNotification(channel, kind, outcome string) {
	notificationsTotal.WithLabelValues(norm(channel), norm(kind), norm(outcome)).Inc()
}
