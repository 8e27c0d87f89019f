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
	// Tracker metrics
	AgentsProcessed  prometheus.Counter
	ReportsCommitted prometheus.Counter
	TickNoOps        prometheus.Counter
	TickErrors       *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	PinnedHeight     prometheus.Gauge

	// Curve metrics
	SlopeAdjustments  *prometheus.CounterVec
	CurveTrades       *prometheus.CounterVec
	ReserveImbalances prometheus.Counter

	// Market metrics
	MarketsResolved *prometheus.CounterVec
	TriggersHandled *prometheus.CounterVec
	OpenMarkets     prometheus.Gauge

	// Liveness metrics
	AgentsDeactivated prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulTick    prometheus.Gauge
	LastSuccessfulResolve prometheus.Gauge
	UptimeSeconds         prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "agent_performance_lab"
	}

	return &Metrics{
		// Tracker metrics
		AgentsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "agents_processed_total",
			Help:      "Total number of agents processed by tick runs",
		}),
		ReportsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "reports_committed_total",
			Help:      "Total number of signed reports accepted by the metrics ledger",
		}),
		TickNoOps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "no_ops_total",
			Help:      "Total number of agent ticks whose recomputed metrics were unchanged",
		}),
		TickErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "errors_total",
			Help:      "Total number of per-agent tick failures by stage",
		}, []string{"stage"}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "tick_duration_seconds",
			Help:      "Tick run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		PinnedHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "pinned_height",
			Help:      "Finalized height the last tick pinned its reads to",
		}),

		// Curve metrics
		SlopeAdjustments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "slope_adjustments_total",
			Help:      "Total number of slope adjustments by policy",
		}, []string{"policy"}),
		CurveTrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "trades_total",
			Help:      "Total number of curve buys and sells",
		}, []string{"side"}),
		ReserveImbalances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "reserve_imbalances_total",
			Help:      "Total number of detected reserve conservation violations",
		}),

		// Market metrics
		MarketsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "resolved_total",
			Help:      "Total number of markets moved to a terminal status",
		}, []string{"status"}),
		TriggersHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "triggers_handled_total",
			Help:      "Total number of threshold triggers by disposition",
		}, []string{"disposition"}),
		OpenMarkets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "open_markets",
			Help:      "Number of markets currently open",
		}),

		// Liveness metrics
		AgentsDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "agents_deactivated_total",
			Help:      "Total number of agents deactivated for inactivity",
		}),

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
		LastSuccessfulTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix timestamp of last successful tick run",
		}),
		LastSuccessfulResolve: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_resolve_timestamp",
			Help:      "Unix timestamp of last successful resolver run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records the outcome counts of one tick run.
func RecordTick(height int64, processed, committed, noOps int, durationSeconds float64) {
	DefaultMetrics.PinnedHeight.Set(float64(height))
	DefaultMetrics.AgentsProcessed.Add(float64(processed))
	DefaultMetrics.ReportsCommitted.Add(float64(committed))
	DefaultMetrics.TickNoOps.Add(float64(noOps))
	DefaultMetrics.TickDuration.Observe(durationSeconds)
}

// RecordTickError records one per-agent tick failure.
func RecordTickError(stage string) {
	DefaultMetrics.TickErrors.WithLabelValues(stage).Inc()
}

// RecordSlopeAdjustment increments the adjustment counter for a policy.
func RecordSlopeAdjustment(policy string) {
	DefaultMetrics.SlopeAdjustments.WithLabelValues(policy).Inc()
}

// RecordCurveTrade increments the trade counter for a side ("buy"/"sell").
func RecordCurveTrade(side string) {
	DefaultMetrics.CurveTrades.WithLabelValues(side).Inc()
}

// RecordMarketResolved increments the resolution counter for a status.
func RecordMarketResolved(status string) {
	DefaultMetrics.MarketsResolved.WithLabelValues(status).Inc()
}

// RecordTriggerHandled increments the trigger counter for a disposition.
func RecordTriggerHandled(disposition string) {
	DefaultMetrics.TriggersHandled.WithLabelValues(disposition).Inc()
}

// RecordDeactivation increments the liveness deactivation counter.
func RecordDeactivation() {
	DefaultMetrics.AgentsDeactivated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
