// Package metrics holds the Prometheus collectors of one server instance.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prefix = "chat_help_mcp_"

// Metrics records dispatch and tool activity. Each instance owns its registry so independent servers
// (and parallel tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "requests_total",
				Help: "JSON-RPC requests handled, by method and outcome code (0 on success)",
			},
			[]string{"method", "code"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "tool_calls_total",
				Help: "Tool executions, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "tool_duration_seconds",
				Help:    "Wall-clock time spent executing tools",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "tool_calls_in_flight",
				Help: "Tool executions currently running",
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.toolCalls,
		m.toolDuration,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest counts one dispatched request. code is 0 for success.
func (m *Metrics) RecordRequest(method string, code int) {
	m.requests.WithLabelValues(method, codeLabel(code)).Inc()
}

// ToolStarted marks a tool execution as in flight and returns the function that records its end.
func (m *Metrics) ToolStarted(tool string) func(outcome string) {
	start := time.Now()
	m.inFlight.Inc()
	return func(outcome string) {
		m.inFlight.Dec()
		m.toolCalls.WithLabelValues(tool, outcome).Inc()
		m.toolDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func codeLabel(code int) string {
	if code == 0 {
		return "ok"
	}
	return strconv.Itoa(code)
}
