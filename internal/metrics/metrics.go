// Package metrics defines the Prometheus collectors shared by the agent
// loop, the provider middleware, and the HTTP boundary.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SimulateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoscribe",
			Subsystem: "simulate",
			Name:      "requests_total",
			Help:      "Simulation requests by terminal outcome",
		},
		[]string{"outcome"}, // done, exhausted, endpoint_failure, invalid_request
	)

	LoopRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chronoscribe",
			Subsystem: "agent",
			Name:      "loop_rounds",
			Help:      "Model invocation rounds per simulation run",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoscribe",
			Subsystem: "agent",
			Name:      "tool_executions_total",
			Help:      "Tool executions by tool name and status",
		},
		[]string{"tool", "status"}, // status: ok, degraded
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoscribe",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by model and kind",
		},
		[]string{"model", "kind"}, // kind: prompt, completion
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chronoscribe",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Completion endpoint latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

// Register installs the collectors into the default registry. Safe to call
// more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(SimulateRequests, LoopRounds, ToolExecutions, LLMTokens, LLMLatency)
	})
}
