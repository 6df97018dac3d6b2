package host

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karloscodes/webprofiler/legacy"
)

// Metrics tracks how pages went through the pipeline. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	halts      prometheus.Counter
	suppressed prometheus.Counter
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webprofiler_page_requests_total",
				Help: "Pages served, by pipeline mode",
			},
			[]string{"mode"},
		),
		halts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webprofiler_page_halts_total",
			Help: "Pages halted by an emulated redirect",
		}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webprofiler_suppressed_errors_total",
			Help: "Pipeline errors swallowed during response emulation",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webprofiler_page_duration_seconds",
				Help:    "Page handling time, by pipeline mode",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
	}

	m.registry.MustRegister(m.requests, m.halts, m.suppressed, m.duration)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) observePage(mode string, signal legacy.Signal, suppressed int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode).Inc()
	m.duration.WithLabelValues(mode).Observe(d.Seconds())
	if signal == legacy.Halt {
		m.halts.Inc()
	}
	if suppressed > 0 {
		m.suppressed.Add(float64(suppressed))
	}
}
