package refresher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
)

type fakeDispatcher struct {
	nextToken string
	failWith  error
	calls     []CallKind
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, kind CallKind, svc *authrep.ServiceRef) (string, error) {
	d.calls = append(d.calls, kind)
	if d.failWith != nil {
		return "", d.failWith
	}
	return d.nextToken, nil
}

func newRefresher(t *testing.T, dispatcher Dispatcher) *Refresher {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "https://example.com", time.Minute, 10*time.Second, dispatcher, nil, nil, func() float64 { return 0 })
}

func TestTickTransitionsInactiveToFetchingConfig(t *testing.T) {
	d := &fakeDispatcher{nextToken: "tok-1"}
	r := newRefresher(t, d)
	svc := &authrep.ServiceRef{ID: "svc-1"}

	require.NoError(t, r.Tick(context.Background(), time.Now(), []*authrep.ServiceRef{svc}))

	f := r.fetcherFor("svc-1")
	assert.Equal(t, PhaseFetchingConfig, f.State.Phase)
	assert.Equal(t, "tok-1", f.Token())
	assert.Equal(t, []CallKind{CallLatestConfig}, d.calls)
}

func TestTickNoOpsWhileAwaitingResponse(t *testing.T) {
	d := &fakeDispatcher{nextToken: "tok-1"}
	r := newRefresher(t, d)
	svc := &authrep.ServiceRef{ID: "svc-1"}

	now := time.Now()
	require.NoError(t, r.Tick(context.Background(), now, []*authrep.ServiceRef{svc}))
	// Second tick arrives before the configDeadline and must no-op.
	require.NoError(t, r.Tick(context.Background(), now.Add(time.Second), []*authrep.ServiceRef{svc}))

	assert.Len(t, d.calls, 1, "a premature tick must not issue a second dispatch")
}

func TestOnHTTPCallResponseMergesLatestConfig(t *testing.T) {
	d := &fakeDispatcher{nextToken: "tok-1"}
	r := newRefresher(t, d)
	svc := &authrep.ServiceRef{ID: "svc-1"}
	services := []*authrep.ServiceRef{svc}

	require.NoError(t, r.Tick(context.Background(), time.Now(), services))

	body := []byte(`{"proxy":{"mapping_rules":[{"method":"GET","pattern":"/","delta":1,"last":false}]}}`)
	require.NoError(t, r.OnHTTPCallResponse(context.Background(), "tok-1", body, nil, services))

	require.Len(t, svc.MappingRules, 1)
	assert.Equal(t, "GET", svc.MappingRules[0].Method)
	assert.Equal(t, "Hits", svc.MappingRules[0].Usages[0].Metric)
	assert.Equal(t, 1, svc.MappingRules[0].Usages[0].Delta)

	f := r.fetcherFor("svc-1")
	assert.Equal(t, PhaseInactive, f.State.Phase)
}

func TestOnHTTPCallResponseFallsBackToMappingRulesOnParseFailure(t *testing.T) {
	d := &fakeDispatcher{nextToken: "tok-1"}
	r := newRefresher(t, d)
	svc := &authrep.ServiceRef{ID: "svc-1"}
	services := []*authrep.ServiceRef{svc}

	require.NoError(t, r.Tick(context.Background(), time.Now(), services))

	d.nextToken = "tok-2"
	require.NoError(t, r.OnHTTPCallResponse(context.Background(), "tok-1", []byte("not json"), nil, services))

	f := r.fetcherFor("svc-1")
	assert.Equal(t, PhaseFetchingRules, f.State.Phase)
	assert.Equal(t, "tok-2", f.Token())
	assert.Equal(t, []CallKind{CallLatestConfig, CallMappingRules}, d.calls)

	body := []byte(`{"mapping_rules":[{"method":"any","pattern":"/x","delta":1,"last":true}]}`)
	require.NoError(t, r.OnHTTPCallResponse(context.Background(), "tok-2", body, nil, services))
	require.Len(t, svc.MappingRules, 1)
	assert.True(t, svc.MappingRules[0].Last)
}

func TestOnHTTPCallResponseDispatchFailureSetsError(t *testing.T) {
	d := &fakeDispatcher{nextToken: "tok-1"}
	r := newRefresher(t, d)
	svc := &authrep.ServiceRef{ID: "svc-1"}
	services := []*authrep.ServiceRef{svc}

	require.NoError(t, r.Tick(context.Background(), time.Now(), services))
	require.NoError(t, r.OnHTTPCallResponse(context.Background(), "tok-1", nil, errors.New("timeout"), services))

	f := r.fetcherFor("svc-1")
	assert.Equal(t, PhaseError, f.State.Phase)
	assert.Error(t, f.State.Err)
}

func TestMergeStashesPreviousRulesAsLastGood(t *testing.T) {
	d := &fakeDispatcher{nextToken: "tok-1"}
	r := newRefresher(t, d)
	existing := []authrep.MappingRule{{Method: "GET", Pattern: "/old", Usages: []authrep.Usage{{Metric: "Hits", Delta: 1}}}}
	svc := &authrep.ServiceRef{ID: "svc-1", MappingRules: existing}
	services := []*authrep.ServiceRef{svc}

	require.NoError(t, r.Tick(context.Background(), time.Now(), services))
	body := []byte(`{"proxy":{"mapping_rules":[{"method":"GET","pattern":"/new","delta":2}]}}`)
	require.NoError(t, r.OnHTTPCallResponse(context.Background(), "tok-1", body, nil, services))

	f := r.fetcherFor("svc-1")
	require.Len(t, f.LastGood(), 1)
	assert.Equal(t, "/old", f.LastGood()[0].Pattern)
	assert.Equal(t, "/new", svc.MappingRules[0].Pattern)
}

func TestTickLosesElectionToConcurrentOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	d1 := &fakeDispatcher{nextToken: "tok-1"}
	d2 := &fakeDispatcher{nextToken: "tok-2"}
	r1 := New(client, "https://example.com", time.Minute, 10*time.Second, d1, nil, nil, func() float64 { return 0.5 })
	r2 := New(client, "https://example.com", time.Minute, 10*time.Second, d2, nil, nil, func() float64 { return 0.5 })

	svc1 := &authrep.ServiceRef{ID: "svc-1"}
	svc2 := &authrep.ServiceRef{ID: "svc-1"}

	now := time.Now()
	require.NoError(t, r1.Tick(context.Background(), now, []*authrep.ServiceRef{svc1}))
	require.NoError(t, r2.Tick(context.Background(), now, []*authrep.ServiceRef{svc2}))

	assert.Len(t, d1.calls, 1, "the election winner dispatches")
	assert.Len(t, d2.calls, 0, "the election loser must not dispatch")
}

func TestTickPeriodHonorsMinSyncAndTTLBounds(t *testing.T) {
	assert.Equal(t, 20*time.Second, TickPeriod(time.Hour, 5*time.Second, 0))
	assert.Equal(t, 30*time.Second, TickPeriod(time.Hour, 30*time.Second, 0))
	assert.Equal(t, 15*time.Second, TickPeriod(15*time.Second, time.Minute, 0))
}
