package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the relayer.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRateLimitHits     *prometheus.CounterVec
	solanaRPCRetries           *prometheus.CounterVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Event Processing Metrics
	pollTicksTotal      *prometheus.CounterVec
	eventsDecodedTotal  *prometheus.CounterVec
	eventsFilteredTotal *prometheus.CounterVec
	signaturesSkipped   *prometheus.CounterVec
	decodeFailuresTotal *prometheus.CounterVec
	pollTickDuration    *prometheus.HistogramVec

	// Settlement Metrics
	settlementsTotal        *prometheus.CounterVec
	settlementDuration      *prometheus.HistogramVec
	settlementPhaseFailures *prometheus.CounterVec
	recoverySweepsTotal     *prometheus.CounterVec

	// Workflow Metrics
	settleActivityDuration *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{1, 5, 10, 25, 50, 100},
			},
			[]string{"endpoint"},
		),

		// Event Processing Metrics
		pollTicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poll_ticks_total",
				Help: "Total number of polling ticks by status",
			},
			[]string{"program", "status"},
		),
		eventsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_events_decoded_total",
				Help: "Total number of order events decoded by kind",
			},
			[]string{"program", "kind"},
		),
		eventsFilteredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_events_filtered_total",
				Help: "Total number of order events excluded by the event filter",
			},
			[]string{"program"},
		),
		signaturesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signatures_skipped_total",
				Help: "Total number of transaction signatures skipped",
			},
			[]string{"program", "reason"},
		),
		decodeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_event_decode_failures_total",
				Help: "Total number of order events that failed to decode",
			},
			[]string{"program"},
		),
		pollTickDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poll_tick_duration_seconds",
				Help:    "Duration of a complete polling tick in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"program"},
		),

		// Settlement Metrics
		settlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlements_total",
				Help: "Total number of settlements by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		settlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_duration_seconds",
				Help:    "End-to-end duration of a settlement in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		settlementPhaseFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_phase_failures_total",
				Help: "Total number of settlement phase failures",
			},
			[]string{"kind", "phase"},
		),
		recoverySweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recovery_sweeps_total",
				Help: "Total number of recovery sweep runs by outcome",
			},
			[]string{"status"},
		),

		// Workflow Metrics
		settleActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settle_activity_duration_seconds",
				Help:    "Duration of settlement workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Event processing metric helpers

// RecordPollTick records a completed polling tick with duration.
func (m *Metrics) RecordPollTick(program, status string, duration float64) {
	m.pollTicksTotal.WithLabelValues(program, status).Inc()
	m.pollTickDuration.WithLabelValues(program).Observe(duration)
}

// RecordEventDecoded records a successfully decoded order event.
func (m *Metrics) RecordEventDecoded(program, kind string) {
	m.eventsDecodedTotal.WithLabelValues(program, kind).Inc()
}

// RecordEventFiltered records an event excluded by the configured filter.
func (m *Metrics) RecordEventFiltered(program string) {
	m.eventsFilteredTotal.WithLabelValues(program).Inc()
}

// RecordSignatureSkipped records a skipped transaction signature.
func (m *Metrics) RecordSignatureSkipped(program, reason string) {
	m.signaturesSkipped.WithLabelValues(program, reason).Inc()
}

// RecordDecodeFailure records an event that failed to decode.
func (m *Metrics) RecordDecodeFailure(program string) {
	m.decodeFailuresTotal.WithLabelValues(program).Inc()
}

// Settlement metric helpers

// RecordSettlement records a settlement outcome with duration.
func (m *Metrics) RecordSettlement(kind, status string, duration float64) {
	m.settlementsTotal.WithLabelValues(kind, status).Inc()
	m.settlementDuration.WithLabelValues(kind).Observe(duration)
}

// RecordSettlementPhaseFailure records a failed settlement phase.
func (m *Metrics) RecordSettlementPhaseFailure(kind, phase string) {
	m.settlementPhaseFailures.WithLabelValues(kind, phase).Inc()
}

// RecordRecoverySweep records a recovery sweep run.
func (m *Metrics) RecordRecoverySweep(status string) {
	m.recoverySweepsTotal.WithLabelValues(status).Inc()
}

// Workflow metric helpers

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.settleActivityDuration.WithLabelValues(activity).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
