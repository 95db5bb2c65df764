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
	// Simulation metrics
	SimulationsTotal     *prometheus.CounterVec
	SimulationRejections *prometheus.CounterVec
	SimulationDuration   prometheus.Histogram

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Storage metrics
	StoreErrors    *prometheus.CounterVec
	HistoryPruned  prometheus.Counter
	TablesUploaded prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "quota_simulator"
	}
	factory := promauto.With(reg)

	return &Metrics{
		SimulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulations calculated by plan kind and default path",
		}, []string{"plan_kind", "default_path"}),
		SimulationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "rejections_total",
			Help:      "Total number of simulation inputs rejected by validation code",
		}, []string{"code"}),
		SimulationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Time spent resolving, calculating and persisting a simulation",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome (hit, miss, error)",
		}, []string{"result"}),

		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Storage and cache write failures by operation",
		}, []string{"operation"}),
		HistoryPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "history_pruned_total",
			Help:      "Total number of simulation records removed by retention",
		}),
		TablesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tables_uploaded_total",
			Help:      "Total number of price tables saved at runtime",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics of a specific registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// =============================================================================
// RECORDER
// =============================================================================

// The methods below satisfy simulation.Recorder.

func (m *Metrics) SimulationCompleted(planKind, defaultPath string, elapsed time.Duration) {
	m.SimulationsTotal.WithLabelValues(planKind, defaultPath).Inc()
	m.SimulationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SimulationRejected(code string) {
	m.SimulationRejections.WithLabelValues(code).Inc()
}

func (m *Metrics) CacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) StoreError(operation string) {
	m.StoreErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) Pruned(n int64) {
	m.HistoryPruned.Add(float64(n))
}

func (m *Metrics) TableUploaded() {
	m.TablesUploaded.Inc()
}
