// Package metrics exposes Prometheus instrumentation for the execution
// runtime. Metrics implements events.Hook, so wiring it into a factory is
// enough to account for every run.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venneberg/kestrel/events"
)

type Metrics struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	PlanCompiles   *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec
	BatchSize      prometheus.Histogram
}

var _ events.Hook = (*Metrics)(nil)

// New builds a metrics set on its own registry, so embedding processes can
// expose several runtimes side by side.
func New() *Metrics {
	r := prometheus.NewRegistry()

	m := &Metrics{
		registry: r,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_runs_total",
			Help: "count of graph runs by mode and outcome",
		}, []string{"mode", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kestrel_run_duration_seconds",
			Help:    "graph run latency by mode",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		PlanCompiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_plan_compiles_total",
			Help: "count of execution plans compiled for new input schemas",
		}, []string{"mode"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_fallbacks_total",
			Help: "count of runs diverted to the fallback backend",
		}, []string{"mode"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_batch_size",
			Help:    "inference micro-batch sizes at flush time",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}

	r.MustRegister(m.RunsTotal, m.RunDuration, m.PlanCompiles, m.FallbacksTotal, m.BatchSize)
	return m
}

// Registry returns the underlying registry for additional collectors.
func (m *Metrics) Registry() prometheus.Registerer { return m.registry }

// Handler serves the registry over HTTP in the standard exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBatch records a micro-batch flush size. Pass it to the factory's
// batch flush observer.
func (m *Metrics) ObserveBatch(n int) {
	m.BatchSize.Observe(float64(n))
}

func (m *Metrics) OnRunStart(context.Context, events.RunStart) {}

func (m *Metrics) OnPlanCompiled(_ context.Context, e events.PlanCompiled) {
	m.PlanCompiles.WithLabelValues(e.Mode).Inc()
}

func (m *Metrics) OnFallback(_ context.Context, e events.FallbackTriggered) {
	m.FallbacksTotal.WithLabelValues(e.Mode).Inc()
}

func (m *Metrics) OnRunEnd(_ context.Context, e events.RunEnd) {
	m.RunsTotal.WithLabelValues(e.Mode, "ok").Inc()
	m.RunDuration.WithLabelValues(e.Mode).Observe(e.Duration.Seconds())
}

func (m *Metrics) OnError(_ context.Context, e events.Error) {
	m.RunsTotal.WithLabelValues(e.Mode, "error").Inc()
}
