// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Trading metrics
	TradesExecuted *prometheus.CounterVec
	TradeErrors    *prometheus.CounterVec
	KeysTraded     *prometheus.CounterVec
	VolumeLamports *prometheus.CounterVec
	TradeRetries   prometheus.Counter

	// Launch metrics
	CurvesFrozen     prometheus.Counter
	SnapshotsCreated prometheus.Counter
	LaunchRuns       *prometheus.CounterVec
	LaunchDuration   prometheus.Histogram
	TokenTransfers   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curve_engine"
	}

	return &Metrics{
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trades_executed_total",
			Help:      "Total number of executed trades by direction",
		}, []string{"direction"}),
		TradeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trade_errors_total",
			Help:      "Total number of rejected trades by direction and reason",
		}, []string{"direction", "reason"}),
		KeysTraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "keys_traded_total",
			Help:      "Total number of keys traded by direction",
		}, []string{"direction"}),
		VolumeLamports: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "volume_lamports_total",
			Help:      "Total gross trade volume in lamports by direction",
		}, []string{"direction"}),
		TradeRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trade_retries_total",
			Help:      "Total number of version-conflict retries during trades",
		}),

		CurvesFrozen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "curves_frozen_total",
			Help:      "Total number of curves frozen",
		}),
		SnapshotsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "snapshots_created_total",
			Help:      "Total number of holder snapshots created",
		}),
		LaunchRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "runs_total",
			Help:      "Total number of launch orchestrations by status",
		}, []string{"status"}),
		LaunchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "duration_seconds",
			Help:      "Launch orchestration duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokenTransfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "token_transfers_total",
			Help:      "Total number of per-holder token transfers by status",
		}, []string{"status"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Database query latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTrade records a successfully executed trade.
func RecordTrade(direction string, keys, grossLamports int64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(direction).Inc()
	DefaultMetrics.KeysTraded.WithLabelValues(direction).Add(float64(keys))
	DefaultMetrics.VolumeLamports.WithLabelValues(direction).Add(float64(grossLamports))
}

// RecordTradeError records a rejected trade.
func RecordTradeError(direction, reason string) {
	DefaultMetrics.TradeErrors.WithLabelValues(direction, reason).Inc()
}

// RecordTradeRetry records one version-conflict retry.
func RecordTradeRetry() {
	DefaultMetrics.TradeRetries.Inc()
}

// RecordFreeze records a curve freeze.
func RecordFreeze() {
	DefaultMetrics.CurvesFrozen.Inc()
}

// RecordSnapshot records a snapshot creation.
func RecordSnapshot() {
	DefaultMetrics.SnapshotsCreated.Inc()
}

// RecordLaunch records a launch orchestration outcome.
func RecordLaunch(status string, durationSeconds float64) {
	DefaultMetrics.LaunchRuns.WithLabelValues(status).Inc()
	DefaultMetrics.LaunchDuration.Observe(durationSeconds)
}

// RecordTransfer records a per-holder token transfer outcome.
func RecordTransfer(status string) {
	DefaultMetrics.TokenTransfers.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records HTTP request latency.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, status).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
