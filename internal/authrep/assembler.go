package authrep

import (
	"net/url"

	"github.com/3scale-labs/authrep-filter/internal/credentials"
	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/source"
)

// RequestInfo is the parsed pseudo-header view of an inbound request
// the assembler needs for service and mapping-rule matching (spec.md
// §4.5 step 1): scheme, authority, method, and path+query split apart.
type RequestInfo struct {
	Scheme    string
	Authority string
	Method    string
	Path      string
	Query     url.Values
}

// Assemble implements the C5 algorithm end to end: authority match,
// credential resolution, mapping-rule walk, usage aggregation.
func (m *Matcher) Assemble(services []*ServiceRef, info RequestInfo, configVersion string, req source.Request, ctx *operation.Context) (*AuthRep, error) {
	svc, err := MatchAuthority(services, info.Authority)
	if err != nil {
		if m.metrics != nil {
			m.metrics.ServiceMatchMisses.Inc()
		}
		return nil, err
	}

	apps, err := credentials.Resolve(svc.Credentials, req, ctx)
	if err != nil {
		return nil, err
	}

	cacheKey := svc.ID + ":" + configVersion
	matched := m.MatchedRules(cacheKey, svc.MappingRules, info.Method, info.Path, info.Query)
	if len(matched) == 0 {
		if m.metrics != nil {
			m.metrics.UsageMatchMisses.Inc()
		}
		return nil, ErrNoUsageMatch
	}

	usages := make(map[string]int)
	for _, rule := range matched {
		for _, u := range rule.Usages {
			usages[u.Metric] += u.Delta
		}
	}

	return &AuthRep{Service: svc, Apps: apps, Usages: usages}, nil
}
