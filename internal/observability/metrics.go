// Package observability holds the Prometheus instrumentation for the
// extraction pipeline. Metrics are registered on the default registry and
// served by the HTTP server's metrics endpoint.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var extractionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "decklens_extractions_total",
		Help: "Total number of deck extractions by normalization outcome (ok, degraded, failed) and error",
	},
	[]string{"outcome"},
)

var extractionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name: "decklens_extraction_duration_seconds",
		Help: "End-to-end extraction latency including model polling",
		// Runs routinely take tens of seconds; default buckets top out at 10s.
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	},
)

var cacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "decklens_cache_lookups_total",
		Help: "Total number of result cache lookups by result (hit, miss, error)",
	},
	[]string{"result"},
)

// ObserveExtraction records one completed extraction attempt.
// outcome is the normalization status, or "error" when the run never produced
// output.
func ObserveExtraction(outcome string, elapsed time.Duration) {
	extractionsTotal.WithLabelValues(outcome).Inc()
	extractionDuration.Observe(elapsed.Seconds())
}

// ObserveCacheLookup records one result cache lookup.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}
