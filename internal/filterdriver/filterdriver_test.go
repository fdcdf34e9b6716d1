package filterdriver

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/config"
	"github.com/3scale-labs/authrep-filter/internal/credentials"
	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/source"
	"github.com/3scale-labs/authrep-filter/internal/value"
)

type fakeRequest struct {
	headers map[string]string
	query   url.Values
}

func (r fakeRequest) Header(name string) (string, bool)    { v, ok := r.headers[name]; return v, ok }
func (r fakeRequest) Query() url.Values                     { return r.query }
func (r fakeRequest) FilterMetadata() (value.Value, bool) { return nil, false }

type noopDispatcher struct{ called bool }

func (d *noopDispatcher) Dispatch(ctx context.Context, svc *authrep.ServiceRef, backend *config.Backend, ar *authrep.AuthRep) (string, error) {
	d.called = true
	return "tok", nil
}

func newMatcher(t *testing.T) *authrep.Matcher {
	t.Helper()
	m, err := authrep.NewMatcher(authrep.DefaultMatcherOptions())
	require.NoError(t, err)
	return m
}

func TestOnRequestHeadersPassthroughScenarioOne(t *testing.T) {
	matcher := newMatcher(t)
	d := &noopDispatcher{}
	driver := New(matcher, d, nil, nil)

	svc := &authrep.ServiceRef{
		ID:          "svc-1",
		Authorities: []string{"example.com"},
		Credentials: credentials.Credentials{
			UserKey: []source.Source{source.QueryString{Keys: []string{"api_key"}}},
		},
		MappingRules: []authrep.MappingRule{
			{Method: "any", Pattern: "/", Usages: []authrep.Usage{{Metric: "Hits", Delta: 1}}},
		},
	}
	cfg := &config.Config{PassthroughMetadata: true}
	req := fakeRequest{query: url.Values{"api_key": {"K"}}}
	info := authrep.RequestInfo{Authority: "example.com", Method: "GET", Path: "/foo", Query: req.query}

	decision := driver.OnRequestHeaders(context.Background(), cfg, []*authrep.ServiceRef{svc}, "v1", info, req, &operation.Context{})

	require.Equal(t, ActionContinue, decision.Action)
	assert.Equal(t, "K", decision.Headers["x-3scale-user-key"])
	assert.Equal(t, "svc-1", decision.Headers["x-3scale-service-id"])
	assert.Equal(t, `{"Hits":1}`, decision.Headers["x-3scale-usages"])
	assert.False(t, d.called, "passthrough mode must not dispatch an outbound call")
}

func TestOnRequestHeadersUnknownServiceRejects403(t *testing.T) {
	matcher := newMatcher(t)
	driver := New(matcher, &noopDispatcher{}, nil, nil)

	svc := &authrep.ServiceRef{ID: "svc-1", Authorities: []string{"a.example"}}
	cfg := &config.Config{PassthroughMetadata: true}
	req := fakeRequest{query: url.Values{}}
	info := authrep.RequestInfo{Authority: "b.example", Method: "GET", Path: "/", Query: req.query}

	decision := driver.OnRequestHeaders(context.Background(), cfg, []*authrep.ServiceRef{svc}, "v1", info, req, &operation.Context{})

	assert.Equal(t, ActionRespond, decision.Action)
	assert.Equal(t, 403, decision.StatusCode)
	assert.Equal(t, "Unknown service", decision.Body)
}

func TestOnRequestHeadersDispatchesOutboundWhenBackendConfigured(t *testing.T) {
	matcher := newMatcher(t)
	d := &noopDispatcher{}
	driver := New(matcher, d, nil, nil)

	svc := &authrep.ServiceRef{
		ID:          "svc-1",
		Authorities: []string{"example.com"},
		Credentials: credentials.Credentials{
			UserKey: []source.Source{source.QueryString{Keys: []string{"api_key"}}},
		},
		MappingRules: []authrep.MappingRule{
			{Method: "any", Pattern: "/", Usages: []authrep.Usage{{Metric: "Hits", Delta: 1}}},
		},
	}
	cfg := &config.Config{Backend: &config.Backend{URL: "https://backend.example.com"}}
	req := fakeRequest{query: url.Values{"api_key": {"K"}}}
	info := authrep.RequestInfo{Authority: "example.com", Method: "GET", Path: "/", Query: req.query}

	decision := driver.OnRequestHeaders(context.Background(), cfg, []*authrep.ServiceRef{svc}, "v1", info, req, &operation.Context{})

	assert.Equal(t, ActionStopIteration, decision.Action)
	assert.Equal(t, "tok", decision.CallToken)
	assert.True(t, d.called)
}

func TestOnCallResponseMapsStatuses(t *testing.T) {
	driver := New(newMatcher(t), &noopDispatcher{}, nil, nil)

	ok := driver.OnCallResponse("tok", CallResponse{Status: 200, HasStatus: true})
	assert.Equal(t, ActionContinue, ok.Action)

	limited := driver.OnCallResponse("tok", CallResponse{Status: 429, HasStatus: true})
	assert.Equal(t, 429, limited.StatusCode)

	missing := driver.OnCallResponse("tok", CallResponse{})
	assert.Equal(t, 502, missing.StatusCode)

	other := driver.OnCallResponse("tok", CallResponse{Status: 500, HasStatus: true})
	assert.Equal(t, 403, other.StatusCode)
}

func TestOnResponseHeadersInjectsPoweredBy(t *testing.T) {
	driver := New(newMatcher(t), &noopDispatcher{}, nil, nil)
	headers := driver.OnResponseHeaders()
	assert.Equal(t, "3scale", headers["Powered-By"])
}
