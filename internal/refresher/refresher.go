// Package refresher implements the config refresher (C7): a
// per-service fetch state machine driven by timer ticks and outbound
// call responses, merging freshly retrieved mapping rules into the
// live service configuration in place.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/lock"
)

// Phase is a ConfigFetcher's position in the fetch state machine.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseFetchingConfig
	PhaseConfigFetched
	PhaseFetchingRules
	PhaseRulesFetched
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseFetchingConfig:
		return "fetching_config"
	case PhaseConfigFetched:
		return "config_fetched"
	case PhaseFetchingRules:
		return "fetching_rules"
	case PhaseRulesFetched:
		return "rules_fetched"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// FetcherState is the current phase plus whatever payload that phase
// carries: an outbound call token while awaiting a response, or an
// error once a dispatch or parse has failed.
type FetcherState struct {
	Phase Phase
	Token string
	Err   error
}

// ConfigFetcher tracks one service's in-flight refresh. lastGood is
// diagnostic only (exposed through LastGood, not logged) and is never used to roll
// a service's mapping rules back; spec.md §7 scenario 6 never revisits
// a rejected fetch automatically.
type ConfigFetcher struct {
	ServiceID string
	State     FetcherState
	lastGood  []authrep.MappingRule
}

// CallKind distinguishes the two outbound call shapes the refresher
// issues.
type CallKind int

const (
	CallLatestConfig CallKind = iota
	CallMappingRules
)

// Dispatcher issues the outbound fetch and returns the call token the
// host will later hand back to OnHTTPCallResponse. It must not block
// for the response itself — dispatch is fire-and-forget per the
// single-suspension-point model (spec.md §5).
type Dispatcher interface {
	Dispatch(ctx context.Context, kind CallKind, svc *authrep.ServiceRef) (token string, err error)
}

// Refresher owns the ordered fetcher vector for one thread/instance and
// the cross-instance CAS election guarding each refresh cycle.
type Refresher struct {
	mu       sync.Mutex
	fetchers []*ConfigFetcher // kept sorted by ServiceID for binary search

	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *Metrics

	redis   *redis.Client
	lockKey string
	lockTTL time.Duration

	ttl             time.Duration
	upstreamTimeout time.Duration
	rnd             func() float64

	configDeadline time.Time
}

// New builds a Refresher. managementURL seeds the cross-instance lock
// key (spec.md §4.7: "a key derived from the management URL").
func New(redisClient *redis.Client, managementURL string, ttl, upstreamTimeout time.Duration, dispatcher Dispatcher, logger *slog.Logger, metrics *Metrics, rnd func() float64) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if rnd == nil {
		rnd = func() float64 { return 0 }
	}
	return &Refresher{
		dispatcher:      dispatcher,
		logger:          logger,
		metrics:         metrics,
		redis:           redisClient,
		lockKey:         "authrep:refresher:lock:" + managementURL,
		lockTTL:         30 * time.Second,
		ttl:             ttl,
		upstreamTimeout: upstreamTimeout,
		rnd:             rnd,
	}
}

func (r *Refresher) fetcherFor(serviceID string) *ConfigFetcher {
	i := sort.Search(len(r.fetchers), func(i int) bool { return r.fetchers[i].ServiceID >= serviceID })
	if i < len(r.fetchers) && r.fetchers[i].ServiceID == serviceID {
		return r.fetchers[i]
	}
	f := &ConfigFetcher{ServiceID: serviceID, State: FetcherState{Phase: PhaseInactive}}
	r.fetchers = append(r.fetchers, nil)
	copy(r.fetchers[i+1:], r.fetchers[i:])
	r.fetchers[i] = f
	return f
}

func (r *Refresher) findByToken(token string) *ConfigFetcher {
	for _, f := range r.fetchers {
		if f.Token() == token {
			return f
		}
	}
	return nil
}

// Token exposes the in-flight call token, empty outside
// FetchingConfig/FetchingRules.
func (f *ConfigFetcher) Token() string { return f.State.Token }

// LastGood exposes the diagnostic-only previous rule set.
func (f *ConfigFetcher) LastGood() []authrep.MappingRule { return f.lastGood }

func findService(services []*authrep.ServiceRef, id string) *authrep.ServiceRef {
	for _, s := range services {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Tick runs one root-context timer callback against the given
// services. now is caller-supplied so scheduling is deterministically
// testable.
func (r *Refresher) Tick(ctx context.Context, now time.Time, services []*authrep.ServiceRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.configDeadline.IsZero() && now.Before(r.configDeadline) {
		r.logger.Warn("refresh tick fired before config deadline", "deadline", r.configDeadline)
		if r.metrics != nil {
			r.metrics.EarlyTicks.Inc()
		}
		return nil
	}

	l := lock.New(r.redis, r.lockKey, r.lockTTL)
	acquired, err := l.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("refresher: election: %w", err)
	}
	if !acquired {
		delay := lock.Jitter(10*time.Second, 20*time.Second, r.rnd)
		r.configDeadline = now.Add(delay)
		r.logger.Debug("lost refresh cycle election, rescheduling", "delay", delay)
		if r.metrics != nil {
			r.metrics.CyclesLost.Inc()
		}
		return nil
	}
	defer func() {
		if relErr := l.Release(ctx); relErr != nil {
			r.logger.Error("refresher: failed to release cycle lock", "error", relErr)
		}
	}()

	for _, svc := range services {
		f := r.fetcherFor(svc.ID)
		r.dispatchFetcher(ctx, f, svc)
	}

	period := TickPeriod(r.ttl, r.upstreamTimeout, time.Duration(r.rnd()*float64(15*time.Second)))
	r.configDeadline = now.Add(period)
	if r.metrics != nil {
		r.metrics.CyclesWon.Inc()
	}
	return nil
}

func (r *Refresher) dispatchFetcher(ctx context.Context, f *ConfigFetcher, svc *authrep.ServiceRef) {
	switch f.State.Phase {
	case PhaseInactive, PhaseError:
		token, err := r.dispatcher.Dispatch(ctx, CallLatestConfig, svc)
		if err != nil {
			f.State = FetcherState{Phase: PhaseError, Err: err}
			if r.metrics != nil {
				r.metrics.DispatchErrors.Inc()
			}
			return
		}
		f.State = FetcherState{Phase: PhaseFetchingConfig, Token: token}
	case PhaseFetchingConfig, PhaseFetchingRules:
		// still awaiting a response, no-op
	case PhaseConfigFetched, PhaseRulesFetched:
		// drained by the merge already performed in OnHTTPCallResponse
	}
}

// OnHTTPCallResponse handles the host's outbound-call completion
// callback, advancing whichever fetcher owns token.
func (r *Refresher) OnHTTPCallResponse(ctx context.Context, token string, body []byte, callErr error, services []*authrep.ServiceRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.findByToken(token)
	if f == nil {
		return fmt.Errorf("refresher: no fetcher awaiting token %q", token)
	}
	svc := findService(services, f.ServiceID)
	if svc == nil {
		return fmt.Errorf("refresher: unknown service %q for token %q", f.ServiceID, token)
	}

	switch f.State.Phase {
	case PhaseFetchingConfig:
		if callErr != nil {
			f.State = FetcherState{Phase: PhaseError, Err: callErr}
			return nil
		}
		rules, err := parseLatestConfig(body)
		if err != nil {
			r.logger.Warn("latest-config parse failed, falling back to mapping rules only", "service_id", svc.ID, "error", err)
			newToken, dErr := r.dispatcher.Dispatch(ctx, CallMappingRules, svc)
			if dErr != nil {
				f.State = FetcherState{Phase: PhaseError, Err: dErr}
				return nil
			}
			f.State = FetcherState{Phase: PhaseFetchingRules, Token: newToken}
			return nil
		}
		f.State = FetcherState{Phase: PhaseConfigFetched}
		r.merge(f, svc, rules)
	case PhaseFetchingRules:
		if callErr != nil {
			f.State = FetcherState{Phase: PhaseError, Err: callErr}
			return nil
		}
		rules, err := parseMappingRules(body)
		if err != nil {
			f.State = FetcherState{Phase: PhaseError, Err: err}
			return nil
		}
		f.State = FetcherState{Phase: PhaseRulesFetched}
		r.merge(f, svc, rules)
	default:
		return fmt.Errorf("refresher: unexpected response for fetcher %q in phase %s", f.ServiceID, f.State.Phase)
	}
	return nil
}

// merge replaces svc's mapping rules in place, stashing the prior set
// as the fetcher's diagnostic lastGood, then returns the fetcher to
// Inactive (spec.md §4.7).
func (r *Refresher) merge(f *ConfigFetcher, svc *authrep.ServiceRef, rules []authrep.MappingRule) {
	f.lastGood = append([]authrep.MappingRule(nil), svc.MappingRules...)
	svc.MappingRules = rules
	f.State = FetcherState{Phase: PhaseInactive}
	if r.metrics != nil {
		r.metrics.Merges.Inc()
	}
	r.logger.Info("mapping rules merged", "service_id", svc.ID, "rule_count", len(rules))
}

// TickPeriod implements spec.md §4.7's scheduling formula:
// min(ttl, max(MIN_SYNC, upstreamTimeout)) + jitter.
func TickPeriod(ttl, upstreamTimeout, jitter time.Duration) time.Duration {
	const minSync = 20 * time.Second
	base := upstreamTimeout
	if base < minSync {
		base = minSync
	}
	if ttl > 0 && base > ttl {
		base = ttl
	}
	return base + jitter
}

type wireMappingRule struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
	Metric  string `json:"metric,omitempty"`
	Delta   int    `json:"delta"`
	Last    bool   `json:"last,omitempty"`
}

func (w wireMappingRule) toRule() authrep.MappingRule {
	metric := w.Metric
	if metric == "" {
		metric = "Hits"
	}
	return authrep.MappingRule{
		Method:  w.Method,
		Pattern: w.Pattern,
		Usages:  []authrep.Usage{{Metric: metric, Delta: w.Delta}},
		Last:    w.Last,
	}
}

type latestConfigPayload struct {
	Proxy struct {
		MappingRules []wireMappingRule `json:"mapping_rules"`
	} `json:"proxy"`
}

type mappingRulesPayload struct {
	MappingRules []wireMappingRule `json:"mapping_rules"`
}

func parseLatestConfig(body []byte) ([]authrep.MappingRule, error) {
	var payload latestConfigPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("refresher: parse latest config: %w", err)
	}
	return toRules(payload.Proxy.MappingRules), nil
}

func parseMappingRules(body []byte) ([]authrep.MappingRule, error) {
	var payload mappingRulesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("refresher: parse mapping rules: %w", err)
	}
	return toRules(payload.MappingRules), nil
}

func toRules(wire []wireMappingRule) []authrep.MappingRule {
	rules := make([]authrep.MappingRule, len(wire))
	for i, w := range wire {
		rules[i] = w.toRule()
	}
	return rules
}
