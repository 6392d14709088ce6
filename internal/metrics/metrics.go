// Package metrics declares the prometheus collectors of the report service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts fetch-and-consolidate runs by status (success, failure, skipped).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_report_runs_total",
			Help: "Total number of report runs",
		},
		[]string{"trigger", "status"}, // trigger=schedule/manual/startup
	)

	RunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ga4_report_run_duration_seconds",
			Help:    "Duration of report runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		},
		[]string{"trigger"},
	)

	// URLsFetchedTotal counts per-URL GA4 lookups by outcome (data, empty, error).
	URLsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_report_urls_fetched_total",
			Help: "Total GA4 lookups per URL by outcome",
		},
		[]string{"outcome"},
	)

	// ConsolidatedFiles counts CSV files by consolidation result (merged, skipped, failed).
	ConsolidatedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_report_consolidated_files_total",
			Help: "Total report CSV files processed by consolidation",
		},
		[]string{"result"},
	)

	ConsolidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ga4_report_consolidation_duration_seconds",
			Help:    "Duration of store consolidation",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"mode"}, // full, incremental
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_report_api_requests_total",
			Help: "Total API requests by route and status code",
		},
		[]string{"route", "status"},
	)

	// LastRunTimestamp is the unix time of the last finished run.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ga4_report_last_run_timestamp_seconds",
			Help: "Unix time of the last finished report run",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
