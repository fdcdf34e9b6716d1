package operation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the extraction engine's Prometheus instruments. Nil is
// a valid zero value everywhere it is threaded through Context — tests
// and callers that don't care about metrics simply omit it.
type Metrics struct {
	PipelinesExecuted prometheus.Counter
	PipelineFailures  prometheus.Counter
}

// NewMetrics registers the engine's counters against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PipelinesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_operation_pipelines_executed_total",
			Help: "Operation pipelines run to completion or failure.",
		}),
		PipelineFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_operation_pipeline_failures_total",
			Help: "Operation pipelines that returned an error.",
		}),
	}
}
