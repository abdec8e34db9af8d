// Package metrics provides Prometheus metrics collection. This package is
// internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector records dispatch and operation lifecycle metrics. It
// implements the Recorder interfaces of the orchestrator and the
// long-running operation manager.
type Collector struct {
	registry *prometheus.Registry

	agentCallsTotal   *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec

	operationTransitions *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.agentCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_calls_total",
			Help:      "Total number of agent dispatches",
		},
		[]string{"agent", "status"},
	)

	c.agentCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_call_duration_seconds",
			Help:      "Agent dispatch duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	c.operationTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_transitions_total",
			Help:      "Total number of long-running operation status transitions",
		},
		[]string{"status"},
	)

	return c
}

// RecordAgentCall records one dispatch outcome.
func (c *Collector) RecordAgentCall(agent string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	c.agentCallsTotal.WithLabelValues(agent, status).Inc()
	c.agentCallDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordOperationTransition records one lifecycle transition.
func (c *Collector) RecordOperationTransition(status string) {
	c.operationTransitions.WithLabelValues(status).Inc()
}

// Handler returns the scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
