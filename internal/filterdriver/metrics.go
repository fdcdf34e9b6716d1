package filterdriver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the request filter driver's Prometheus instruments.
type Metrics struct {
	PassthroughDecisions prometheus.Counter
	OutboundDispatches   prometheus.Counter
	DispatchErrors       prometheus.Counter
}

// NewMetrics registers the driver's counters against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PassthroughDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_driver_passthrough_decisions_total",
			Help: "Requests resolved via passthrough metadata injection instead of an outbound call.",
		}),
		OutboundDispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_driver_outbound_dispatches_total",
			Help: "Outbound authorize-and-report calls dispatched.",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_driver_dispatch_errors_total",
			Help: "Outbound authorize-and-report dispatch failures.",
		}),
	}
}
