// Package metrics exposes Prometheus collectors for authorization flows and pollers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "connectorctl"

// Flow outcomes.
const (
	OutcomeConnected = "connected"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeCanceled  = "canceled"
)

// Fetch results.
const (
	ResultOK        = "ok"
	ResultTransport = "transport_error"
	ResultAPI       = "api_error"
)

// FlowMetrics records authorization lifecycle metrics. A nil *FlowMetrics
// records nothing.
type FlowMetrics struct {
	registry *prometheus.Registry

	flowsStarted    *prometheus.CounterVec
	flowOutcomes    *prometheus.CounterVec
	staleDiscarded  *prometheus.CounterVec
	activePollers   prometheus.Gauge
	statusFetches   *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
}

// New creates FlowMetrics on a fresh registry that also carries the Go and
// process collectors.
func New() *FlowMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newFlowMetrics(registry)
}

// NewWithoutRuntime creates FlowMetrics on a registry carrying only the flow
// collectors. Tests use it to keep gathered output small.
func NewWithoutRuntime() *FlowMetrics {
	return newFlowMetrics(prometheus.NewRegistry())
}

func newFlowMetrics(registry *prometheus.Registry) *FlowMetrics {
	factory := promauto.With(registry)

	return &FlowMetrics{
		registry: registry,

		flowsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorization",
			Name:      "flows_started_total",
			Help:      "Authorization flows started.",
		}, []string{"connector_id"}),

		flowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorization",
			Name:      "flow_outcomes_total",
			Help:      "Authorization flows finished, by outcome.",
		}, []string{"connector_id", "outcome"}),

		staleDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorization",
			Name:      "stale_responses_discarded_total",
			Help:      "Responses dropped because the connector's generation moved on.",
		}, []string{"connector_id", "source"}),

		activePollers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "active",
			Help:      "Number of running status pollers.",
		}),

		statusFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "status_fetches_total",
			Help:      "Status fetches issued by pollers and refreshes, by result.",
		}, []string{"result"}),

		backendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "actions_total",
			Help:      "Authorization actions sent to the gateway, by action and result.",
		}, []string{"action", "result"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *FlowMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *FlowMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *FlowMetrics) FlowStarted(connectorID string) {
	if m == nil {
		return
	}
	m.flowsStarted.WithLabelValues(connectorID).Inc()
}

func (m *FlowMetrics) FlowFinished(connectorID, outcome string) {
	if m == nil {
		return
	}
	m.flowOutcomes.WithLabelValues(connectorID, outcome).Inc()
}

// StaleDiscarded counts a generation-mismatched response. source is "poll",
// "refresh" or "initiate".
func (m *FlowMetrics) StaleDiscarded(connectorID, source string) {
	if m == nil {
		return
	}
	m.staleDiscarded.WithLabelValues(connectorID, source).Inc()
}

func (m *FlowMetrics) PollerStarted(string) {
	if m == nil {
		return
	}
	m.activePollers.Inc()
}

func (m *FlowMetrics) PollerStopped(string) {
	if m == nil {
		return
	}
	m.activePollers.Dec()
}

func (m *FlowMetrics) StatusFetched(result string) {
	if m == nil {
		return
	}
	m.statusFetches.WithLabelValues(result).Inc()
}

func (m *FlowMetrics) ActionSent(action, result string) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(action, result).Inc()
}
