package authrep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the AuthRep assembler's Prometheus instruments.
type Metrics struct {
	ServiceMatchMisses prometheus.Counter
	UsageMatchMisses   prometheus.Counter
	RouterCacheHits    prometheus.Counter
	RouterCacheMisses  prometheus.Counter
}

// NewMetrics registers the assembler's counters against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ServiceMatchMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_service_match_misses_total",
			Help: "Requests whose authority matched no configured service.",
		}),
		UsageMatchMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_usage_match_misses_total",
			Help: "Requests whose method+path matched no mapping rule.",
		}),
		RouterCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_router_cache_hits_total",
			Help: "Compiled per-service router cache hits.",
		}),
		RouterCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "authrep_router_cache_misses_total",
			Help: "Compiled per-service router cache misses (rebuilt).",
		}),
	}
}
