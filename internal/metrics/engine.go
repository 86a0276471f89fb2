package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine Prometheus metrics.
var (
	EngineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eslayer",
			Name:      "engine_request_duration_seconds",
			Help:      "Search engine round trip duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "status"},
	)

	IndexProvisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eslayer",
			Name:      "index_provision_total",
			Help:      "Index provisioning outcomes",
		},
		[]string{"result"}, // "created" / "exists" / "error"
	)

	VersionConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eslayer",
			Name:      "version_conflicts_total",
			Help:      "Writes rejected by optimistic concurrency control",
		},
		[]string{"resource"},
	)
)

var registered bool

// Register adds engine and admin API metrics to the default registry.
// Repeated calls are no-ops.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EngineRequestDuration,
		IndexProvisionTotal,
		VersionConflictsTotal,
		AdminRequestDuration,
		AdminRequestsTotal,
		AdminInFlight,
	)
	registered = true
}
