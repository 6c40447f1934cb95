package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for domain attestation checks.
type Metrics struct {
	Checks        *prometheus.CounterVec
	LookupLatency prometheus.Histogram
	Retries       prometheus.Counter
	CacheHits     prometheus.Counter
	BreakerState  prometheus.Gauge
}

// New creates and registers attestation metrics.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arkv_attestation_checks_total",
			Help: "Domain attestation checks by outcome",
		}, []string{"outcome"}), // outcome: "verified", "unverified", "unavailable"

		LookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arkv_attestation_lookup_duration_seconds",
			Help:    "Duration of individual TXT lookups",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arkv_attestation_lookup_retries_total",
			Help: "TXT lookups retried after a resolver fault",
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arkv_attestation_cache_hits_total",
			Help: "Attestation checks answered from the positive-answer cache",
		}),

		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arkv_attestation_resolver_circuit_open",
			Help: "1 while the resolver circuit breaker is open",
		}),
	}
}

// IncrementCheck records a check outcome.
func (m *Metrics) IncrementCheck(outcome string) {
	if m != nil {
		m.Checks.WithLabelValues(outcome).Inc()
	}
}

// ObserveLookup records one TXT lookup.
func (m *Metrics) ObserveLookup(d time.Duration) {
	if m != nil {
		m.LookupLatency.Observe(d.Seconds())
	}
}

// IncrementRetry records a retried lookup.
func (m *Metrics) IncrementRetry() {
	if m != nil {
		m.Retries.Inc()
	}
}

// IncrementCacheHit records a cache hit.
func (m *Metrics) IncrementCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// SetBreakerOpen records the breaker position.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}
