// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	DepositRunsTotal *prometheus.CounterVec
	DepositDuration  prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	StageFailures    *prometheus.CounterVec
	RunsInFlight     prometheus.Gauge

	// Solana metrics
	RPCCallLatency      *prometheus.HistogramVec
	BroadcastsTotal     *prometheus.CounterVec
	ConfirmationLatency prometheus.Histogram

	// Backend metrics
	FetchLatency prometheus.Histogram
	FetchErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulDeposit prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "deposit_pipeline"
	}

	return &Metrics{
		// Pipeline metrics
		DepositRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of deposit runs by terminal outcome",
		}, []string{"outcome"}),
		DepositDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end deposit run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total number of stage failures by stage and error kind",
		}, []string{"stage", "kind"}),
		RunsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of deposit runs currently executing",
		}),

		// Solana metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		BroadcastsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "broadcasts_total",
			Help:      "Total number of transaction submissions by result",
		}, []string{"result"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from broadcast to terminal finality in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 60, 90, 120},
		}),

		// Backend metrics
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "fetch_latency_seconds",
			Help:      "Instruction fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "fetch_errors_total",
			Help:      "Total number of instruction fetch errors by kind",
		}, []string{"kind"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulDeposit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_deposit_timestamp",
			Help:      "Unix timestamp of last confirmed deposit",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDepositRun records a completed deposit run.
func RecordDepositRun(outcome string, durationSeconds float64) {
	DefaultMetrics.DepositRunsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.DepositDuration.Observe(durationSeconds)
}

// RecordStage records one stage's duration.
func RecordStage(stage string, seconds float64) {
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordStageFailure records a stage failure with its error kind.
func RecordStageFailure(stage, kind string) {
	DefaultMetrics.StageFailures.WithLabelValues(stage, kind).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordBroadcast records a transaction submission result.
func RecordBroadcast(result string) {
	DefaultMetrics.BroadcastsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
