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
	// Orchestrator metrics
	DecisionsEvaluated  *prometheus.CounterVec
	DecisionsDegraded   prometheus.Counter
	AgentTimeouts       *prometheus.CounterVec
	AgentFailures       *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	AgentCallDuration   *prometheus.HistogramVec

	// Safety metrics
	GateDenials     *prometheus.CounterVec
	Violations      *prometheus.CounterVec
	SafetyMode      *prometheus.GaugeVec
	DailyLoss       prometheus.Gauge
	ErrorBurstSize  prometheus.Gauge

	// Risk gate metrics
	ReviewsTotal       *prometheus.CounterVec
	OrdersClamped      prometheus.Counter
	OutcomesApplied    prometheus.Counter
	OutcomesOutOfOrder prometheus.Counter
	PendingOutcomes    prometheus.Gauge

	// Storage metrics
	HistoryAppends  *prometheus.CounterVec
	HistorySize     prometheus.Gauge
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastEvaluation prometheus.Gauge
	UptimeSeconds  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tradegate"
	}

	return &Metrics{
		DecisionsEvaluated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "decisions_evaluated_total",
			Help:      "Total number of decisions evaluated by aggregated stance",
		}, []string{"stance"}),
		DecisionsDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "decisions_degraded_total",
			Help:      "Total number of decisions with at least one substituted opinion",
		}),
		AgentTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "agent_timeouts_total",
			Help:      "Total number of agent calls that exceeded the timeout",
		}, []string{"agent"}),
		AgentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "agent_failures_total",
			Help:      "Total number of agent calls that returned an error",
		}, []string{"agent"}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "evaluation_duration_seconds",
			Help:      "Full evaluation workflow duration",
			Buckets:   prometheus.DefBuckets,
		}),
		AgentCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "agent_call_duration_seconds",
			Help:      "Individual agent call duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),

		GateDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "gate_denials_total",
			Help:      "Total number of gate denials by reason",
		}, []string{"reason"}),
		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "violations_total",
			Help:      "Total number of violations recorded by trigger kind",
		}, []string{"kind"}),
		SafetyMode: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "mode",
			Help:      "Current safety mode (1 for the active mode label, 0 otherwise)",
		}, []string{"mode"}),
		DailyLoss: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "daily_realized_loss",
			Help:      "Cumulative realized loss for the current trading day",
		}),
		ErrorBurstSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "error_burst_size",
			Help:      "Error events within the trailing burst window",
		}),

		ReviewsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "reviews_total",
			Help:      "Total number of risk gate reviews by verdict",
		}, []string{"verdict"}),
		OrdersClamped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "orders_clamped_total",
			Help:      "Total number of orders clamped to the per-trade maximum",
		}),
		OutcomesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "outcomes_applied_total",
			Help:      "Total number of trade outcomes applied to safety counters",
		}),
		OutcomesOutOfOrder: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "outcomes_out_of_order_total",
			Help:      "Total number of trade outcomes that arrived ahead of turn",
		}),
		PendingOutcomes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "pending_outcomes",
			Help:      "Early trade outcomes buffered awaiting their turn",
		}),

		HistoryAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "appends_total",
			Help:      "Total number of history appends by status",
		}, []string{"status"}),
		HistorySize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "size",
			Help:      "Decisions currently retained by the history store",
		}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastEvaluation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_evaluation_timestamp_seconds",
			Help:      "Unix timestamp of the last completed evaluation",
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

// RecordDecision records one completed evaluation.
func RecordDecision(stance string, degraded bool, durationSeconds float64) {
	DefaultMetrics.DecisionsEvaluated.WithLabelValues(stance).Inc()
	DefaultMetrics.EvaluationDuration.Observe(durationSeconds)
	if degraded {
		DefaultMetrics.DecisionsDegraded.Inc()
	}
}

// RecordAgentTimeout increments the timeout counter for one agent.
func RecordAgentTimeout(agentID string) {
	DefaultMetrics.AgentTimeouts.WithLabelValues(agentID).Inc()
}

// RecordAgentFailure increments the failure counter for one agent.
func RecordAgentFailure(agentID string) {
	DefaultMetrics.AgentFailures.WithLabelValues(agentID).Inc()
}

// RecordGateDenial records one gate denial by reason.
func RecordGateDenial(reason string) {
	DefaultMetrics.GateDenials.WithLabelValues(reason).Inc()
}

// RecordViolation records one violation by trigger kind.
func RecordViolation(kind string) {
	DefaultMetrics.Violations.WithLabelValues(kind).Inc()
}

// UpdateSafetyMode sets the mode gauge so exactly one label is 1.
func UpdateSafetyMode(mode string) {
	for _, m := range []string{"ACTIVE", "PAUSED", "OVERRIDDEN"} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		DefaultMetrics.SafetyMode.WithLabelValues(m).Set(v)
	}
}

// RecordReview records one risk gate review.
func RecordReview(accepted bool, clamped bool) {
	verdict := "rejected"
	if accepted {
		verdict = "accepted"
	}
	DefaultMetrics.ReviewsTotal.WithLabelValues(verdict).Inc()
	if clamped {
		DefaultMetrics.OrdersClamped.Inc()
	}
}

// RecordOutcomeApplied increments the applied outcomes counter.
func RecordOutcomeApplied() {
	DefaultMetrics.OutcomesApplied.Inc()
}

// RecordOutcomeOutOfOrder increments the out-of-order counter.
func RecordOutcomeOutOfOrder() {
	DefaultMetrics.OutcomesOutOfOrder.Inc()
}

// RecordHistoryAppend records one history append attempt.
func RecordHistoryAppend(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.HistoryAppends.WithLabelValues(status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
