// Package metrics exposes Prometheus collectors for generations and uploads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the studio collectors on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	Uploads            *prometheus.CounterVec
	Designs            prometheus.Gauge
	Quota              prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_generations_total",
				Help: "Generation requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studio_generation_duration_seconds",
				Help:    "Time spent waiting on the generation provider",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"mode"},
		),
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_uploads_total",
				Help: "Image hosting uploads by outcome",
			},
			[]string{"outcome"},
		),
		Designs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "studio_designs",
			Help: "Number of designs in the session collection",
		}),
		Quota: factory.NewGauge(prometheus.GaugeOpts{
			Name: "studio_generation_quota",
			Help: "Current value of the generation counter",
		}),
	}
}

// ObserveGeneration records one dispatch
func (m *Metrics) ObserveGeneration(mode, outcome string, elapsed time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.Generations.WithLabelValues(mode, outcome).Inc()
	if outcome == "success" {
		m.GenerationDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
