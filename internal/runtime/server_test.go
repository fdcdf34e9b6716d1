package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/config"
	"github.com/3scale-labs/authrep-filter/internal/credentials"
	"github.com/3scale-labs/authrep-filter/internal/filterdriver"
	"github.com/3scale-labs/authrep-filter/internal/source"
)

func TestServeFilteredPassthroughScenarioOne(t *testing.T) {
	matcher, err := authrep.NewMatcher(authrep.DefaultMatcherOptions())
	require.NoError(t, err)

	cfg := &config.Config{
		PassthroughMetadata: true,
		Services: []config.Service{
			{ServiceRef: authrep.ServiceRef{
				ID:          "svc-1",
				Authorities: []string{"example.com"},
				Credentials: credentials.Credentials{
					UserKey: []source.Source{source.QueryString{Keys: []string{"api_key"}}},
				},
				MappingRules: []authrep.MappingRule{
					{Method: "any", Pattern: "/", Usages: []authrep.Usage{{Metric: "Hits", Delta: 1}}},
				},
			}},
		},
	}

	driver := filterdriver.New(matcher, NewOutboundDispatcher(http.DefaultClient, nil), nil, nil)
	srv := NewServer(cfg, driver, NewOutboundDispatcher(http.DefaultClient, nil), "v1", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo?api_key=K", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "K", rec.Header().Get("x-3scale-user-key"))
	assert.Equal(t, "3scale", rec.Header().Get("Powered-By"))
}

func TestServeFilteredUnknownServiceRejects(t *testing.T) {
	matcher, err := authrep.NewMatcher(authrep.DefaultMatcherOptions())
	require.NoError(t, err)

	cfg := &config.Config{
		PassthroughMetadata: true,
		Services: []config.Service{
			{ServiceRef: authrep.ServiceRef{ID: "svc-1", Authorities: []string{"a.example"}}},
		},
	}
	driver := filterdriver.New(matcher, NewOutboundDispatcher(http.DefaultClient, nil), nil, nil)
	srv := NewServer(cfg, driver, NewOutboundDispatcher(http.DefaultClient, nil), "v1", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://b.example/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unknown service", rec.Body.String())
}
