package authrep

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MatcherOptions controls the authority/mapping-rule matcher cache.
type MatcherOptions struct {
	// RouterCacheSize bounds the number of compiled per-service
	// mux.Router instances held at once (default 256).
	RouterCacheSize int
	// Metrics is optional; a nil value disables instrumentation.
	Metrics *Metrics
}

// DefaultMatcherOptions returns sane matcher defaults.
func DefaultMatcherOptions() MatcherOptions {
	return MatcherOptions{RouterCacheSize: 256}
}

// Matcher finds the service owning a request authority and the
// mapping rules that apply to a request method+path+query, caching
// compiled per-service routers across requests since building a
// mux.Router per rule set is the expensive part of the match.
type Matcher struct {
	routers *lru.Cache[string, *mux.Router]
	rules   *lru.Cache[string, []MappingRule]
	metrics *Metrics
}

// NewMatcher builds a Matcher with the given cache size.
func NewMatcher(opts MatcherOptions) (*Matcher, error) {
	size := opts.RouterCacheSize
	if size <= 0 {
		size = 256
	}
	routers, err := lru.New[string, *mux.Router](size)
	if err != nil {
		return nil, fmt.Errorf("authrep: new router cache: %w", err)
	}
	rules, err := lru.New[string, []MappingRule](size)
	if err != nil {
		return nil, fmt.Errorf("authrep: new rules cache: %w", err)
	}
	return &Matcher{routers: routers, rules: rules, metrics: opts.Metrics}, nil
}

// MatchAuthority returns the first service (in order) whose authority
// glob set matches authority (spec.md §3 "deterministic first-match
// lookup"), or ErrNoServiceMatched.
func MatchAuthority(services []*ServiceRef, authority string) (*ServiceRef, error) {
	host := authority
	if idx := strings.LastIndex(authority, ":"); idx >= 0 {
		if _, err := strconv.Atoi(authority[idx+1:]); err == nil {
			host = authority[:idx]
		}
	}
	for _, svc := range services {
		for _, pattern := range svc.Authorities {
			if matched, err := doublestar.Match(pattern, authority); err == nil && matched {
				return svc, nil
			}
			if host != authority {
				if matched, err := doublestar.Match(pattern, host); err == nil && matched {
					return svc, nil
				}
			}
		}
	}
	return nil, ErrNoServiceMatched
}

// routerFor returns the cached mux.Router for a service's rule set,
// building and caching one if absent. A cached router is reused only
// while the cached rule set has the same methods, patterns and last
// flags as rules; otherwise it is rebuilt under the same cacheKey.
func (m *Matcher) routerFor(cacheKey string, rules []MappingRule) *mux.Router {
	if r, ok := m.routers.Get(cacheKey); ok {
		if cached, ok := m.rules.Get(cacheKey); ok && sameRules(cached, rules) {
			if m.metrics != nil {
				m.metrics.RouterCacheHits.Inc()
			}
			return r
		}
	}
	if m.metrics != nil {
		m.metrics.RouterCacheMisses.Inc()
	}
	r := buildRouter(rules)
	m.routers.Add(cacheKey, r)
	m.rules.Add(cacheKey, rules)
	return r
}

func sameRules(a, b []MappingRule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Method != b[i].Method || a[i].Pattern != b[i].Pattern || a[i].Last != b[i].Last {
			return false
		}
	}
	return true
}

// buildRouter turns an ordered rule set into a mux.Router with one
// named route per rule, so a match can be traced back to its index.
// A rule's path is matched as a prefix of the request path.
func buildRouter(rules []MappingRule) *mux.Router {
	router := mux.NewRouter()
	for i, rule := range rules {
		path, queries := splitPattern(rule.Pattern)
		route := router.NewRoute().Name(strconv.Itoa(i)).PathPrefix(path)
		if rule.Method != "" && !strings.EqualFold(rule.Method, "any") {
			route = route.Methods(strings.ToUpper(rule.Method))
		}
		if len(queries) > 0 {
			route.Queries(queries...)
		}
	}
	return router
}

// splitPattern parses a "path?k=v&k2=v2" mapping-rule pattern into a
// gorilla/mux path template and a flat (key, value) pair slice
// suitable for Route.Queries.
func splitPattern(pattern string) (string, []string) {
	path, query, hasQuery := strings.Cut(pattern, "?")
	if !hasQuery {
		return path, nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return path, nil
	}
	pairs := make([]string, 0, len(values)*2)
	for k, vs := range values {
		v := ""
		if len(vs) > 0 {
			v = vs[0]
		}
		pairs = append(pairs, k, v)
	}
	return path, pairs
}

// MatchedRules walks rules in declared order against an (method, path,
// query) request, returning the rules that match. A "last" match
// stops the walk after itself is included. spec.md §9 leaves the exact
// effect of "last" as an open question with no directing evidence;
// this is an undirected choice among equally unsupported readings, not
// a grounded one (see DESIGN.md).
func (m *Matcher) MatchedRules(cacheKey string, rules []MappingRule, method, path string, query url.Values) []MappingRule {
	router := m.routerFor(cacheKey, rules)
	var matched []MappingRule
	for i, rule := range rules {
		req, err := http.NewRequest(method, path, nil)
		if err != nil {
			continue
		}
		req.URL.RawQuery = query.Encode()
		var rm mux.RouteMatch
		route := router.Get(strconv.Itoa(i))
		if route == nil || !route.Match(req, &rm) {
			continue
		}
		matched = append(matched, rule)
		if rule.Last {
			break
		}
	}
	return matched
}
