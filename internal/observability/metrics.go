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
	// Stream metrics
	FramesReceived   *prometheus.CounterVec
	FrameParseErrors prometheus.Counter
	EventsNormalized *prometheus.CounterVec
	DirectionDrift   prometheus.Counter

	// Connection metrics
	ConnectionState     *prometheus.GaugeVec
	ReconnectAttempts   *prometheus.CounterVec
	FatalCloses         prometheus.Counter
	ActiveSubscriptions *prometheus.GaugeVec

	// Matching metrics
	MatchDecisions  *prometheus.CounterVec
	ProfilesLoaded  prometheus.Gauge
	MatchEvaluation prometheus.Histogram

	// Execution metrics
	OrdersDispatched  *prometheus.CounterVec
	ExecutionOutcomes *prometheus.CounterVec
	ExecutionLatency  prometheus.Histogram
	OrderSizeSOL      *prometheus.HistogramVec
	RateLimitWaits    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastEventReceived prometheus.Gauge
	LastExecution     prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "autopilot"
	}

	return &Metrics{
		// Stream metrics
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Total number of frames received by connection and frame type",
		}, []string{"connection", "frame_type"}),
		FrameParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_parse_errors_total",
			Help:      "Total number of frames that failed to decode",
		}),
		EventsNormalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_normalized_total",
			Help:      "Total number of events normalized by kind",
		}, []string{"kind"}),
		DirectionDrift: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "direction_drift_total",
			Help:      "Total number of trade frames with no recognizable direction field",
		}),

		// Connection metrics
		ConnectionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "Connection state (0=disconnected, 1=connecting, 2=open, 3=subscribed, 4=closed_transient, 5=closed_fatal)",
		}, []string{"connection"}),
		ReconnectAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnect attempts by connection",
		}, []string{"connection"}),
		FatalCloses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "fatal_closes_total",
			Help:      "Total number of closes classified as fatal (no reconnect)",
		}),
		ActiveSubscriptions: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "active_subscriptions",
			Help:      "Number of active subscriptions by channel",
		}, []string{"channel"}),

		// Matching metrics
		MatchDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "decisions_total",
			Help:      "Total number of match decisions by reason",
		}, []string{"reason"}),
		ProfilesLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "profiles_loaded",
			Help:      "Number of trading profiles currently loaded",
		}),
		MatchEvaluation: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "evaluation_seconds",
			Help:      "Time spent evaluating one event against all profiles",
			Buckets:   []float64{.00001, .0001, .001, .01, .1},
		}),

		// Execution metrics
		OrdersDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orders_dispatched_total",
			Help:      "Total number of trade orders dispatched by profile kind and direction",
		}, []string{"profile_kind", "direction"}),
		ExecutionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "outcomes_total",
			Help:      "Total number of execution outcomes by status",
		}, []string{"status"}),
		ExecutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "latency_seconds",
			Help:      "Trade execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OrderSizeSOL: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_size_sol",
			Help:      "Dispatched order size in SOL",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
		}, []string{"direction"}),
		RateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of dispatches delayed by the rate limiter",
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
		LastEventReceived: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_received_timestamp",
			Help:      "Unix timestamp of the last normalized stream event",
		}),
		LastExecution: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_execution_timestamp",
			Help:      "Unix timestamp of the last successful trade execution",
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

// RecordFrame increments the frames received counter.
func RecordFrame(connection, frameType string) {
	DefaultMetrics.FramesReceived.WithLabelValues(connection, frameType).Inc()
}

// RecordParseError increments the frame parse error counter.
func RecordParseError() {
	DefaultMetrics.FrameParseErrors.Inc()
}

// RecordEventNormalized records a normalized event and refreshes the health gauge.
func RecordEventNormalized(kind string, observedAtMS int64) {
	DefaultMetrics.EventsNormalized.WithLabelValues(kind).Inc()
	DefaultMetrics.LastEventReceived.Set(float64(observedAtMS) / 1000)
}

// RecordDirectionDrift increments the direction drift counter.
func RecordDirectionDrift() {
	DefaultMetrics.DirectionDrift.Inc()
}

// SetConnectionState updates the connection state gauge.
func SetConnectionState(connection string, state int) {
	DefaultMetrics.ConnectionState.WithLabelValues(connection).Set(float64(state))
}

// RecordReconnectAttempt increments the reconnect attempt counter.
func RecordReconnectAttempt(connection string) {
	DefaultMetrics.ReconnectAttempts.WithLabelValues(connection).Inc()
}

// RecordFatalClose increments the fatal close counter.
func RecordFatalClose() {
	DefaultMetrics.FatalCloses.Inc()
}

// SetActiveSubscriptions updates the active subscription gauge for a channel.
func SetActiveSubscriptions(channel string, count int) {
	DefaultMetrics.ActiveSubscriptions.WithLabelValues(channel).Set(float64(count))
}

// RecordMatchDecision increments the match decision counter for a reason.
func RecordMatchDecision(reason string) {
	DefaultMetrics.MatchDecisions.WithLabelValues(reason).Inc()
}

// SetProfilesLoaded updates the loaded profile gauge.
func SetProfilesLoaded(count int) {
	DefaultMetrics.ProfilesLoaded.Set(float64(count))
}

// ObserveMatchEvaluation records the duration of one event-vs-profiles pass.
func ObserveMatchEvaluation(seconds float64) {
	DefaultMetrics.MatchEvaluation.Observe(seconds)
}

// RecordOrderDispatched records a dispatched order and its size.
func RecordOrderDispatched(profileKind, direction string, sizeSOL float64) {
	DefaultMetrics.OrdersDispatched.WithLabelValues(profileKind, direction).Inc()
	DefaultMetrics.OrderSizeSOL.WithLabelValues(direction).Observe(sizeSOL)
}

// RecordExecutionOutcome records an execution outcome and its latency.
func RecordExecutionOutcome(status string, seconds float64) {
	DefaultMetrics.ExecutionOutcomes.WithLabelValues(status).Inc()
	DefaultMetrics.ExecutionLatency.Observe(seconds)
	if status == "success" {
		DefaultMetrics.LastExecution.SetToCurrentTime()
	}
}

// RecordRateLimitWait increments the rate limiter wait counter.
func RecordRateLimitWait() {
	DefaultMetrics.RateLimitWaits.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
