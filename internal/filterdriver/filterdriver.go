// Package filterdriver implements the per-request state machine (C6):
// compute AuthRep on request headers, either inject passthrough
// metadata or dispatch an outbound authorize-and-report call, resume
// on the call response, and inject the response marker header.
package filterdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/config"
	"github.com/3scale-labs/authrep-filter/internal/credentials"
	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/source"
)

// Action tells the host runtime what to do after a driver callback.
type Action int

const (
	// ActionContinue lets the request proceed downstream.
	ActionContinue Action = iota
	// ActionRespond short-circuits the request with an immediate response.
	ActionRespond
	// ActionStopIteration suspends the request awaiting a call response.
	ActionStopIteration
)

// Decision is the outcome of on_request_headers.
type Decision struct {
	Action     Action
	StatusCode int
	Body       string
	Headers    map[string]string
	CallToken  string
}

// Dispatcher issues the outbound authorize-and-report call and returns
// a call token correlating the later response.
type Dispatcher interface {
	Dispatch(ctx context.Context, svc *authrep.ServiceRef, backend *config.Backend, authRep *authrep.AuthRep) (token string, err error)
}

// Driver runs the per-request callbacks against one resolved service
// set and outbound dispatcher.
type Driver struct {
	matcher    *authrep.Matcher
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *Metrics

	// pending tracks in-flight call tokens so on_call_response can be
	// matched back to the request that issued them; the host owns one
	// request context per token, so this is keyed by token only.
	pending map[string]pendingRequest
}

type pendingRequest struct {
	service *authrep.ServiceRef
}

// New builds a Driver.
func New(matcher *authrep.Matcher, dispatcher Dispatcher, logger *slog.Logger, metrics *Metrics) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{matcher: matcher, dispatcher: dispatcher, logger: logger, metrics: metrics, pending: make(map[string]pendingRequest)}
}

// OnRequestHeaders implements the on_request_headers half of the C6
// state machine (spec.md §4.6).
func (d *Driver) OnRequestHeaders(ctx context.Context, cfg *config.Config, services []*authrep.ServiceRef, configVersion string, info authrep.RequestInfo, req source.Request, opCtx *operation.Context) Decision {
	authRep, err := d.matcher.Assemble(services, info, configVersion, req, opCtx)
	if err != nil {
		return d.rejectForAssembleError(err)
	}

	if cfg.PassthroughMetadata {
		if d.metrics != nil {
			d.metrics.PassthroughDecisions.Inc()
		}
		return Decision{Action: ActionContinue, Headers: passthroughHeaders(cfg, authRep)}
	}

	if cfg.Backend != nil {
		token, dispatchErr := d.dispatcher.Dispatch(ctx, authRep.Service, cfg.Backend, authRep)
		if dispatchErr != nil {
			d.logger.Error("outbound dispatch failed", "service_id", authRep.Service.ID, "error", dispatchErr)
			if d.metrics != nil {
				d.metrics.DispatchErrors.Inc()
			}
			return reject(403, "Authentication failed")
		}
		d.pending[token] = pendingRequest{service: authRep.Service}
		if d.metrics != nil {
			d.metrics.OutboundDispatches.Inc()
		}
		return Decision{Action: ActionStopIteration, CallToken: token}
	}

	return reject(403, "Authentication failed")
}

func (d *Driver) rejectForAssembleError(err error) Decision {
	switch {
	case errors.Is(err, authrep.ErrNoServiceMatched):
		return reject(403, "Unknown service")
	case errors.Is(err, authrep.ErrNoUsageMatch):
		return reject(404, "No Mapping Rule matched")
	case errors.Is(err, credentials.ErrNotFound):
		return reject(403, "Authentication parameters missing")
	default:
		return reject(403, "Authentication failed")
	}
}

func reject(status int, body string) Decision {
	return Decision{Action: ActionRespond, StatusCode: status, Body: body}
}

// CallResponse is what the host hands back on_call_response: the
// upstream status line, or its absence entirely.
type CallResponse struct {
	Status        int
	HasStatus     bool
	RejectionKind string // e.g. "limits_exceeded" when Status == 429
}

// OnCallResponse implements on_call_response(token) (spec.md §4.6).
func (d *Driver) OnCallResponse(token string, resp CallResponse) Decision {
	delete(d.pending, token)

	if !resp.HasStatus {
		return reject(502, "upstream returned no status")
	}
	switch {
	case resp.Status == 200:
		return Decision{Action: ActionContinue}
	case resp.Status == 429 || resp.RejectionKind == "limits_exceeded":
		return reject(429, "usage limits exceeded")
	default:
		return reject(403, "Authentication failed")
	}
}

// OnResponseHeaders implements on_response_headers (spec.md §4.6):
// always injects the Powered-By marker.
func (d *Driver) OnResponseHeaders() map[string]string {
	return map[string]string{"Powered-By": "3scale"}
}

// passthroughHeaders builds the downstream identity headers spec.md §6
// lists for passthrough_metadata mode.
func passthroughHeaders(cfg *config.Config, ar *authrep.AuthRep) map[string]string {
	headers := map[string]string{
		"x-3scale-service-id": ar.Service.ID,
	}
	if ar.Service.Token != "" {
		headers["x-3scale-service-token"] = ar.Service.Token
	}
	if cfg.System != nil {
		if cfg.System.Name != "" {
			headers["x-3scale-cluster-name"] = cfg.System.Name
		}
	}
	if cfg.Backend != nil {
		if cfg.Backend.URL != "" {
			headers["x-3scale-upstream-url"] = cfg.Backend.URL
		}
		if cfg.Backend.Timeout > 0 {
			headers["x-3scale-timeout"] = fmt.Sprintf("%d", int(cfg.Backend.Timeout/time.Millisecond))
		}
	}

	for _, app := range ar.Apps {
		switch app.Kind {
		case credentials.KindUserKey:
			headers["x-3scale-user-key"] = app.ID
		case credentials.KindAppID:
			if app.HasKey {
				headers["x-3scale-app-id"] = app.ID + ":" + app.Key
			} else {
				headers["x-3scale-app-id"] = app.ID
			}
		}
	}

	usages, err := json.Marshal(ar.Usages)
	if err == nil {
		headers["x-3scale-usages"] = string(usages)
	}
	return headers
}

// BuildRequestInfo is a small convenience for host bindings translating
// a raw URL/method pair into the authrep.RequestInfo the driver needs.
func BuildRequestInfo(method, rawURL string) (authrep.RequestInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return authrep.RequestInfo{}, fmt.Errorf("filterdriver: parse request url: %w", err)
	}
	return authrep.RequestInfo{
		Scheme:    u.Scheme,
		Authority: u.Host,
		Method:    method,
		Path:      u.Path,
		Query:     u.Query(),
	}, nil
}
