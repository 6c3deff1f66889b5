package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pawplan_redis_requests_total",
		Help: "Redis-backed guards by purpose and result.",
	},
	[]string{"purpose", "result"}, // e.g. purpose="webhook_dedupe", result="duplicate"
)

func IncCacheRequest(purpose, result string) {
	cacheRequestsTotal.WithLabelValues(norm(purpose), norm(result)).Inc()
}
