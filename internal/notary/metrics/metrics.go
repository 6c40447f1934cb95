package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for notarization workflows.
type Metrics struct {
	// Workflow outcomes by workflow and outcome code
	Workflows *prometheus.CounterVec

	// End-to-end workflow latency
	WorkflowLatency *prometheus.HistogramVec

	// 1 when the last probe found a usable signing provider
	ProviderAvailable prometheus.Gauge

	// Re-attestation outcomes
	Rechecks *prometheus.CounterVec
}

// New creates a new Metrics instance with all notary metrics registered.
func New() *Metrics {
	return &Metrics{
		Workflows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arkv_notary_workflows_total",
			Help: "Total notarization workflows by workflow and outcome",
		}, []string{"workflow", "outcome"}), // workflow: "file", "business", "verify"

		WorkflowLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arkv_notary_workflow_duration_seconds",
			Help:    "Duration of notarization workflows including signing and DNS checks",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"workflow"}),

		ProviderAvailable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arkv_notary_provider_available",
			Help: "Whether the signing provider passed its last capability probe",
		}),

		Rechecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arkv_notary_rechecks_total",
			Help: "Total attestation rechecks by outcome",
		}, []string{"outcome"}), // outcome: "verified", "not_verified", "unavailable", "error"
	}
}

// ObserveWorkflow records one workflow run.
func (m *Metrics) ObserveWorkflow(workflow, outcome string, d time.Duration) {
	if m != nil {
		m.Workflows.WithLabelValues(workflow, outcome).Inc()
		m.WorkflowLatency.WithLabelValues(workflow).Observe(d.Seconds())
	}
}

// SetProviderAvailable records the probe result.
func (m *Metrics) SetProviderAvailable(available bool) {
	if m == nil {
		return
	}
	if available {
		m.ProviderAvailable.Set(1)
		return
	}
	m.ProviderAvailable.Set(0)
}

// IncrementRecheck records a recheck outcome.
func (m *Metrics) IncrementRecheck(outcome string) {
	if m != nil {
		m.Rechecks.WithLabelValues(outcome).Inc()
	}
}
