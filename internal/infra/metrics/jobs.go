package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(maintenanceRunsTotal, brokenPlansCancelledTotal) }

var (
	maintenanceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_maintenance_runs_total",
			Help: "Background worker runs, labeled by worker and status.",
		},
		[]string{"worker", "status"}, // status: 'ok', 'failed'
	)

	brokenPlansCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawplan_broken_plans_cancelled_total",
			Help: "Plans cancelled by the cleanup worker, labeled by reason.",
		},
		[]string{"reason"},
	)
)

func IncMaintenanceRun(worker, status string) {
	maintenanceRunsTotal.WithLabelValues(norm(worker), norm(status)).Inc()
}

func AddBrokenPlansCancelled(reason string, n int) {
	brokenPlansCancelledTotal.WithLabelValues(norm(reason)).Add(float64(n))
}
