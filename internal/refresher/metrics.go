package refresher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the refresher's Prometheus instruments, registered
// once at construction and shared across every Tick/OnHTTPCallResponse
// call.
type Metrics struct {
	CyclesWon      prometheus.Counter
	CyclesLost     prometheus.Counter
	EarlyTicks     prometheus.Counter
	DispatchErrors prometheus.Counter
	Merges         prometheus.Counter
}

// NewMetrics registers the refresher's counters against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CyclesWon: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_refresher_cycles_won_total",
			Help: "Refresh cycles where this instance won the cross-instance CAS election.",
		}),
		CyclesLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_refresher_cycles_lost_total",
			Help: "Refresh cycles where this instance lost the cross-instance CAS election.",
		}),
		EarlyTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_refresher_early_ticks_total",
			Help: "Timer ticks that fired before the config deadline and were skipped.",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_refresher_dispatch_errors_total",
			Help: "Outbound fetch dispatch failures.",
		}),
		Merges: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_refresher_merges_total",
			Help: "Mapping rule merges applied to a service's live configuration.",
		}),
	}
}
