package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provisioning module.
type Metrics struct {
	Submissions prometheus.Counter

	// Terminal outcomes: success, fatal
	Completions *prometheus.CounterVec

	// Resolution results by granted=true|false
	Resolutions *prometheus.CounterVec

	// Callbacks dropped as unknown, stale or duplicate, by action
	DiscardedCallbacks *prometheus.CounterVec

	InFlight prometheus.Gauge

	// Submission to completion
	Duration prometheus.Histogram
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "esims_provisioning_submissions_total",
			Help: "Total accepted download submissions",
		}),

		Completions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esims_provisioning_completions_total",
			Help: "Total completed downloads by outcome",
		}, []string{"outcome"}),

		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esims_provisioning_resolutions_total",
			Help: "Total resolution results by whether a retry was granted",
		}, []string{"granted"}),

		DiscardedCallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esims_callbacks_discarded_total",
			Help: "Callbacks ignored because no in-flight request matched",
		}, []string{"action"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "esims_provisioning_in_flight",
			Help: "Downloads currently awaiting a platform callback",
		}),

		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "esims_provisioning_duration_seconds",
			Help:    "Duration from submission to completion",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

// IncrementSubmissions records an accepted submission.
func (m *Metrics) IncrementSubmissions() {
	if m != nil {
		m.Submissions.Inc()
		m.InFlight.Inc()
	}
}

// IncrementCompletion records a terminal outcome.
func (m *Metrics) IncrementCompletion(outcome string, d time.Duration) {
	if m != nil {
		m.Completions.WithLabelValues(outcome).Inc()
		m.InFlight.Dec()
		m.Duration.Observe(d.Seconds())
	}
}

// IncrementResolution records a resolution result.
func (m *Metrics) IncrementResolution(granted bool) {
	if m != nil {
		label := "false"
		if granted {
			label = "true"
		}
		m.Resolutions.WithLabelValues(label).Inc()
	}
}

// IncrementDiscarded records an ignored callback.
func (m *Metrics) IncrementDiscarded(action string) {
	if m != nil {
		m.DiscardedCallbacks.WithLabelValues(action).Inc()
	}
}
