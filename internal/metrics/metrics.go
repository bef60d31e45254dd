// Package metrics holds the process-wide Prometheus collectors on a
// private registry so the exposition endpoint carries only our series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// AnalysesTotal counts pipeline runs by terminal status.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dmur_analyses_total",
		Help: "Completed boundary analyses by status.",
	}, []string{"status"})

	// AnalysisDuration observes per-stage pipeline latency.
	AnalysisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dmur_analysis_duration_seconds",
		Help:    "Duration of analysis pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// OverpassRequests counts upstream Overpass API calls by outcome.
	OverpassRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dmur_overpass_requests_total",
		Help: "Overpass API requests by outcome.",
	}, []string{"status"})
)

func init() {
	registry.MustRegister(AnalysesTotal, AnalysisDuration, OverpassRequests)
}

// Handler serves the exposition endpoint for the private registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
