package runtime

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/config"
	"github.com/3scale-labs/authrep-filter/internal/filterdriver"
	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/pkg/logger"
)

// Server is the net/http binding of the request filter driver (C6):
// one ServeHTTP call plays on_request_headers, the blocking
// OutboundDispatcher.Await, on_call_response, and on_response_headers
// in sequence, since a goroutine-per-request net/http handler can
// simply block at the suspension point instead of returning control to
// a host scheduler.
type Server struct {
	cfg           *config.Config
	driver        *filterdriver.Driver
	dispatcher    *OutboundDispatcher
	configVersion string
	logger        *slog.Logger
	opMetrics     *operation.Metrics
}

// NewServer builds a Server. opMetrics is optional; nil disables
// extraction-engine instrumentation.
func NewServer(cfg *config.Config, driver *filterdriver.Driver, dispatcher *OutboundDispatcher, configVersion string, logger *slog.Logger, opMetrics *operation.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, driver: driver, dispatcher: dispatcher, configVersion: configVersion, logger: logger, opMetrics: opMetrics}
}

// Handler builds the request mux: the filter on every path, plus
// Prometheus metrics on /metrics (spec.md §4.3's host runtime surface).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.serveFiltered)
	return logger.LoggingMiddleware(s.logger)(mux)
}

func (s *Server) serveFiltered(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	info := authrep.RequestInfo{
		Scheme:    scheme,
		Authority: r.Host,
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
	}
	req := newHTTPRequest(r)

	reqLogger := logger.FromContext(r.Context(), s.logger)
	decision := s.driver.OnRequestHeaders(r.Context(), s.cfg, s.cfg.ServiceRefs(), s.configVersion, info, req, &operation.Context{Logger: reqLogger, Metrics: s.opMetrics})

	switch decision.Action {
	case filterdriver.ActionRespond:
		s.respond(w, decision)
	case filterdriver.ActionContinue:
		s.finish(w, decision.Headers)
	case filterdriver.ActionStopIteration:
		resp := s.dispatcher.Await(r.Context(), decision.CallToken)
		final := s.driver.OnCallResponse(decision.CallToken, resp)
		if final.Action == filterdriver.ActionRespond {
			s.respond(w, final)
			return
		}
		s.finish(w, nil)
	}
}

func (s *Server) respond(w http.ResponseWriter, d filterdriver.Decision) {
	for k, v := range d.Headers {
		w.Header().Set(k, v)
	}
	for k, v := range s.driver.OnResponseHeaders() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(d.StatusCode)
	_, _ = w.Write([]byte(d.Body))
}

func (s *Server) finish(w http.ResponseWriter, extra map[string]string) {
	for k, v := range extra {
		w.Header().Set(k, v)
	}
	for k, v := range s.driver.OnResponseHeaders() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)
}
