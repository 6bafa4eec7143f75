// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Payment metrics
	PaymentsVerified    *prometheus.CounterVec
	VerificationLatency *prometheus.HistogramVec
	SessionsIssued      *prometheus.CounterVec

	// Score metrics
	ScoresSubmitted *prometheus.CounterVec

	// Settlement metrics
	SettlementRuns     *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	LegOutcomes        *prometheus.CounterVec

	// Upstream metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	PriceLookups   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSettlement prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "arcade_pot"
	}

	return &Metrics{
		PaymentsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "verifications_total",
			Help:      "Total number of payment verifications by network and outcome",
		}, []string{"network", "outcome"}),
		VerificationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "verification_latency_seconds",
			Help:      "Payment verification latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
		SessionsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "issued_total",
			Help:      "Total number of play sessions issued by network",
		}, []string{"network"}),

		ScoresSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "submissions_total",
			Help:      "Total number of score submissions by outcome",
		}, []string{"outcome"}),

		SettlementRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "runs_total",
			Help:      "Total number of settlement runs by outcome",
		}, []string{"outcome"}),
		SettlementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Settlement run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		LegOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "leg_outcomes_total",
			Help:      "Total number of settlement leg outcomes by network and status",
		}, []string{"network", "status"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "Chain RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"client", "method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of failed chain RPC calls",
		}, []string{"client", "method"}),
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Total number of price lookups by asset and source",
		}, []string{"asset", "source"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "status"}),

		LastSuccessfulSettlement: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_settlement_timestamp",
			Help:      "Unix timestamp of last settlement that ended paid",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVerification records a payment verification outcome and its latency.
func RecordVerification(network, outcome string, d time.Duration) {
	DefaultMetrics.PaymentsVerified.WithLabelValues(network, outcome).Inc()
	DefaultMetrics.VerificationLatency.WithLabelValues(network).Observe(d.Seconds())
}

// RecordSessionIssued increments the sessions issued counter.
func RecordSessionIssued(network string) {
	DefaultMetrics.SessionsIssued.WithLabelValues(network).Inc()
}

// RecordScoreSubmission records a score submission outcome.
func RecordScoreSubmission(outcome string) {
	DefaultMetrics.ScoresSubmitted.WithLabelValues(outcome).Inc()
}

// RecordSettlement records a settlement run outcome and its duration.
func RecordSettlement(outcome string, d time.Duration) {
	DefaultMetrics.SettlementRuns.WithLabelValues(outcome).Inc()
	DefaultMetrics.SettlementDuration.Observe(d.Seconds())
	if outcome == "paid" {
		DefaultMetrics.LastSuccessfulSettlement.SetToCurrentTime()
	}
}

// RecordLegOutcome increments the leg outcome counter.
func RecordLegOutcome(network, status string) {
	DefaultMetrics.LegOutcomes.WithLabelValues(network, status).Inc()
}

// RecordRPCCall records chain RPC call latency and failures.
func RecordRPCCall(client, method string, d time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(client, method).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(client, method).Inc()
	}
}

// RecordPriceLookup increments the price lookup counter.
// Source is one of cache, remote, error.
func RecordPriceLookup(asset, source string) {
	DefaultMetrics.PriceLookups.WithLabelValues(asset, source).Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(route, status string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, status).Inc()
}
