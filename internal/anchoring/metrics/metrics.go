package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger anchoring.
type Metrics struct {
	Submissions  *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	SignLatency  prometheus.Histogram
	PendingGauge prometheus.Gauge
	WatcherPolls prometheus.Counter
}

// New creates and registers anchoring metrics.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arkv_anchoring_submissions_total",
			Help: "Anchor submissions by outcome",
		}, []string{"outcome"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arkv_anchoring_transitions_total",
			Help: "Anchor state transitions by target status",
		}, []string{"status"}),

		SignLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arkv_anchoring_sign_duration_seconds",
			Help:    "Time spent in the signing collaborator per submission",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		PendingGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arkv_anchoring_pending",
			Help: "Pending anchors seen by the last watcher poll",
		}),

		WatcherPolls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arkv_anchoring_watcher_polls_total",
			Help: "Receipt watcher poll cycles",
		}),
	}
}

func (m *Metrics) IncrementSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSign(d time.Duration) {
	if m == nil {
		return
	}
	m.SignLatency.Observe(d.Seconds())
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingGauge.Set(float64(n))
}

func (m *Metrics) IncrementPoll() {
	if m == nil {
		return
	}
	m.WatcherPolls.Inc()
}
