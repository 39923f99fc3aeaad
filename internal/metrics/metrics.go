package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"copycraft/internal/access"
)

// Metrics holds all Prometheus metrics for copycraft
type Metrics struct {
	// Access control
	AccessDecisions *prometheus.CounterVec
	AccessLookups   *prometheus.CounterVec
	Authorizers     prometheus.Gauge

	// Generation
	Generations       *prometheus.CounterVec
	GenerationLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		AccessDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copycraft_access_decisions_total",
				Help: "Settled access decisions by state",
			},
			[]string{"state"},
		),
		AccessLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copycraft_access_lookups_total",
				Help: "Authorization store lookups by result",
			},
			[]string{"result"},
		),
		Authorizers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "copycraft_session_authorizers",
				Help: "Session authorizers currently held in memory",
			},
		),
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copycraft_generations_total",
				Help: "Content generation requests by model and result",
			},
			[]string{"model", "result"},
		),
		GenerationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "copycraft_generation_latency_seconds",
				Help:    "Generation API latency in seconds",
				Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"model"},
		),
	}
}

// AccessRecorder adapts Metrics to access.Recorder.
func (m *Metrics) AccessRecorder() access.Recorder {
	return accessRecorder{m: m}
}

// ObserveGeneration records one generation call. result is "ok",
// "invalid_key" or "connectivity".
func (m *Metrics) ObserveGeneration(model, result string, elapsed time.Duration) {
	m.Generations.WithLabelValues(model, result).Inc()
	m.GenerationLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

type accessRecorder struct {
	m *Metrics
}

func (r accessRecorder) ObserveDecision(state access.State) {
	r.m.AccessDecisions.WithLabelValues(state.String()).Inc()
}

func (r accessRecorder) ObserveLookup(result string) {
	r.m.AccessLookups.WithLabelValues(result).Inc()
}
