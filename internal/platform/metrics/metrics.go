package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide registry and service-level metrics.
// Module metrics register against Registry.
type Metrics struct {
	Registry *prometheus.Registry
	Info     *prometheus.GaugeVec
}

// New creates a registry with the Go and process collectors installed.
func New(platform string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		Registry: reg,
		Info: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "esims_info",
			Help: "Static service information",
		}, []string{"platform"}),
	}
	m.Info.WithLabelValues(platform).Set(1)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
