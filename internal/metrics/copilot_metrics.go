package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch metrics
	ToolDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octopilot_tool_dispatch_total",
			Help: "Total number of tool invocations by tool name and role",
		},
		[]string{"tool", "role"}, // role: normal, fallback, invalid
	)

	UnrecognizedArgumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octopilot_unrecognized_arguments_total",
			Help: "Total number of argument keys supplied by the model that the tool does not declare",
		},
		[]string{"tool"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octopilot_errors_total",
			Help: "Total number of requests that ended in an error, by taxonomy kind",
		},
		[]string{"kind"},
	)

	// Upstream metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "octopilot_upstream_request_duration_seconds",
			Help:    "Duration of requests to external services",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "operation"},
	)

	// Context collection metrics
	ContextItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "octopilot_context_items",
			Help:    "Number of items placed in a context bundle by kind",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"kind"},
	)
)

// RecordDispatch records a tool invocation
func RecordDispatch(tool, role string) {
	ToolDispatchTotal.WithLabelValues(tool, role).Inc()
}

// RecordUnrecognizedArguments records extra argument keys the model produced
func RecordUnrecognizedArguments(tool string, count int) {
	if count <= 0 {
		return
	}
	UnrecognizedArgumentsTotal.WithLabelValues(tool).Add(float64(count))
}

// RecordError records a request that ended with the given error kind
func RecordError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveUpstream records how long an external call took
func ObserveUpstream(service, operation string, started time.Time) {
	UpstreamRequestDuration.WithLabelValues(service, operation).Observe(time.Since(started).Seconds())
}

// RecordContextItems records how many items a bundle carried
func RecordContextItems(kind string, count int) {
	ContextItems.WithLabelValues(kind).Observe(float64(count))
}
