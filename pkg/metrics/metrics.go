// Package metrics exposes Prometheus instrumentation for graph builds and
// route searches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every circulation collector plus the Go runtime collectors
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// graphBuilds counts graph builds.
	// Labels: result (ok, empty, unavailable, error)
	graphBuilds = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "circulation",
		Subsystem: "graph",
		Name:      "builds_total",
		Help:      "Total graph builds by result",
	}, []string{"result"})

	graphBuildDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "circulation",
		Subsystem: "graph",
		Name:      "build_seconds",
		Help:      "Graph build latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	malformedRecords = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "circulation",
		Name:      "malformed_records_total",
		Help:      "Connection records skipped while building graphs",
	})

	// searches counts route searches.
	// Labels: kind (shortest, ranked), status (found, node_not_found, no_route, invalid_rank, aborted)
	searches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "circulation",
		Name:      "searches_total",
		Help:      "Total route searches by kind and outcome",
	}, []string{"kind", "status"})

	searchDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "circulation",
		Name:      "search_seconds",
		Help:      "Route search latency in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"kind"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Search kinds
const (
	KindShortest = "shortest"
	KindRanked   = "ranked"
)

// RecordBuild records the result and latency of a graph build
func RecordBuild(result string, elapsed time.Duration, skipped int) {
	graphBuilds.WithLabelValues(result).Inc()
	graphBuildDuration.Observe(elapsed.Seconds())
	if skipped > 0 {
		malformedRecords.Add(float64(skipped))
	}
}

// RecordSearch records the outcome and latency of a route search
func RecordSearch(kind, status string, elapsed time.Duration) {
	searches.WithLabelValues(kind, status).Inc()
	searchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
