// Package metrics exposes Prometheus collectors for the session lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripplanner"

// Metrics groups the collectors recorded by hooks and the runtime.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scenarioSeeds   *prometheus.CounterVec
	restores        prometheus.Counter
	memoryForwardKO prometheus.Counter
	turns           *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	toolCalls       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scenarioSeeds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_seed_total",
			Help:      "Scenario loader invocations by outcome.",
		}, []string{"outcome"}),
		restores: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_restores_total",
			Help:      "Live sessions restored from a snapshot.",
		}),
		memoryForwardKO: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_forward_failures_total",
			Help:      "Post-turn memory forwards that failed.",
		}),
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by resulting stage and status.",
		}, []string{"stage", "status"}),
		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a turn including hooks.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Pipeline tool invocations.",
		}, []string{"tool"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ScenarioSeed(outcome string) {
	if m == nil {
		return
	}
	m.scenarioSeeds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Restored() {
	if m == nil {
		return
	}
	m.restores.Inc()
}

func (m *Metrics) MemoryForwardFailed() {
	if m == nil {
		return
	}
	m.memoryForwardKO.Inc()
}

func (m *Metrics) Turn(stage, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(stage, status).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ToolCall(tool string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
}
