// Package metrics exports Prometheus collectors for the discovery pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobradar"

// Circuit states as exported on the circuit_state gauge.
const (
	CircuitClosed   = 0
	CircuitHalfOpen = 1
	CircuitOpen     = 2
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total discovery cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of discovery cycles",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	postingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_total",
			Help:      "Postings processed per source by result (found, new, updated, filtered, invalid)",
		},
		[]string{"source", "result"},
	)

	sourceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Source adapter failures by kind",
		},
		[]string{"source", "kind"},
	)

	sourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_scrape_duration_seconds",
			Help:      "Duration of one source scrape including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Current state of a source circuit (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	circuitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_state_transitions_total",
			Help:      "Total number of source circuit state transitions",
		},
		[]string{"source", "from", "to"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_retries_total",
			Help:      "Retry attempts made against a source",
		},
		[]string{"source"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert deliveries per channel by result (sent, failed)",
		},
		[]string{"channel", "result"},
	)

	upsertFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_failures_total",
			Help:      "Postings that could not be persisted",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(postingsTotal)
	prometheus.MustRegister(sourceErrorsTotal)
	prometheus.MustRegister(sourceDuration)
	prometheus.MustRegister(circuitState)
	prometheus.MustRegister(circuitTransitions)
	prometheus.MustRegister(retriesTotal)
	prometheus.MustRegister(alertsTotal)
	prometheus.MustRegister(upsertFailures)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCycle records the outcome and duration of one cycle.
func RecordCycle(outcome string, d time.Duration) {
	cyclesTotal.WithLabelValues(outcome).Inc()
	cycleDuration.Observe(d.Seconds())
}

// AddPostings adds n to the per-source counter for result.
func AddPostings(source, result string, n int) {
	if n <= 0 {
		return
	}
	postingsTotal.WithLabelValues(source, result).Add(float64(n))
}

// RecordSourceError counts one failed scrape.
func RecordSourceError(source, kind string) {
	sourceErrorsTotal.WithLabelValues(source, kind).Inc()
}

// ObserveScrape records how long a scrape took.
func ObserveScrape(source string, d time.Duration) {
	sourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordRetry counts one retry attempt.
func RecordRetry(source string) {
	retriesTotal.WithLabelValues(source).Inc()
}

// RecordCircuitState sets the circuit gauge for a source.
func RecordCircuitState(source string, state int) {
	circuitState.WithLabelValues(source).Set(float64(state))
}

// RecordCircuitTransition records a transition and updates the gauge.
// Call this from the breaker's state change callback.
func RecordCircuitTransition(source, from, to string, toState int) {
	circuitTransitions.WithLabelValues(source, from, to).Inc()
	RecordCircuitState(source, toState)
}

// RecordAlert counts one delivery attempt on a channel.
func RecordAlert(channel string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	alertsTotal.WithLabelValues(channel, result).Inc()
}

// RecordUpsertFailure counts a posting that failed to persist.
func RecordUpsertFailure() {
	upsertFailures.Inc()
}
