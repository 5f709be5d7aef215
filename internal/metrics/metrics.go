// Package metrics holds the Prometheus collectors for NAV ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navsync_runs_total",
			Help: "Total number of NAV ingestion runs",
		},
		[]string{"trigger", "outcome"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navsync_run_duration_seconds",
			Help:    "NAV ingestion run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"trigger"},
	)

	SchemesParsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navsync_feed_schemes_parsed",
			Help: "Number of schemes parsed from the most recent feed fetch",
		},
	)

	FeedRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navsync_feed_rows_dropped_total",
			Help: "Feed rows dropped by the parser",
		},
		[]string{"reason"}, // malformed, nav, date
	)

	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navsync_feed_fetch_duration_seconds",
			Help:    "AMFI feed fetch duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	HoldingsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navsync_holdings_updated_total",
			Help: "Holding documents whose cached NAV was refreshed",
		},
	)

	WriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navsync_write_failures_total",
			Help: "Per-scheme persistence failures",
		},
		[]string{"collection"}, // nav_data, nav_history
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)
)
