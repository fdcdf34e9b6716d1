package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/config"
	"github.com/3scale-labs/authrep-filter/internal/credentials"
	"github.com/3scale-labs/authrep-filter/internal/filterdriver"
	"github.com/3scale-labs/authrep-filter/internal/refresher"
)

// OutboundDispatcher is the C6 outbound binding: it fires the
// authorize-and-report call in a goroutine and hands the caller a
// channel-backed Await so a net/http handler goroutine can block on
// the response exactly where the host ABI would otherwise suspend the
// request context. Building the actual 3scale accounting wire body is
// out of scope (spec.md §1); this issues a minimal generic shape
// (service token, app identity, usage deltas as query parameters).
type OutboundDispatcher struct {
	client *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan filterdriver.CallResponse
}

// NewOutboundDispatcher builds an OutboundDispatcher.
func NewOutboundDispatcher(client *http.Client, logger *slog.Logger) *OutboundDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboundDispatcher{client: client, logger: logger, pending: make(map[string]chan filterdriver.CallResponse)}
}

// Dispatch implements filterdriver.Dispatcher.
func (d *OutboundDispatcher) Dispatch(ctx context.Context, svc *authrep.ServiceRef, backend *config.Backend, ar *authrep.AuthRep) (string, error) {
	token := uuid.NewString()
	ch := make(chan filterdriver.CallResponse, 1)

	d.mu.Lock()
	d.pending[token] = ch
	d.mu.Unlock()

	go d.perform(token, ch, svc, backend, ar)
	return token, nil
}

// Await blocks until the dispatched call for token completes or ctx is
// done, mirroring the single suspension point of spec.md §5.
func (d *OutboundDispatcher) Await(ctx context.Context, token string) filterdriver.CallResponse {
	d.mu.Lock()
	ch, ok := d.pending[token]
	delete(d.pending, token)
	d.mu.Unlock()
	if !ok {
		return filterdriver.CallResponse{}
	}

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		return filterdriver.CallResponse{}
	}
}

func (d *OutboundDispatcher) perform(token string, ch chan<- filterdriver.CallResponse, svc *authrep.ServiceRef, backend *config.Backend, ar *authrep.AuthRep) {
	req, err := http.NewRequest(http.MethodPost, strings.TrimSuffix(backend.URL, "/")+"/transactions/authrep.xml", nil)
	if err != nil {
		d.logger.Error("outbound request build failed", "service_id", svc.ID, "error", err)
		ch <- filterdriver.CallResponse{}
		return
	}

	q := req.URL.Query()
	q.Set("service_token", svc.Token)
	q.Set("service_id", svc.ID)
	for _, app := range ar.Apps {
		if app.Kind == credentials.KindUserKey {
			q.Set("user_key", app.ID)
		} else {
			q.Set("app_id", app.ID)
			if app.HasKey {
				q.Set("app_key", app.Key)
			}
		}
	}
	for metric, delta := range ar.Usages {
		q.Set(fmt.Sprintf("usage[%s]", metric), fmt.Sprintf("%d", delta))
	}
	req.URL.RawQuery = q.Encode()

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("outbound call failed", "service_id", svc.ID, "error", err)
		ch <- filterdriver.CallResponse{}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ch <- filterdriver.CallResponse{Status: resp.StatusCode, HasStatus: true}
}

// ManagementDispatcher is the C7 outbound binding: it fetches the
// latest proxy config or mapping rules from the management system and
// reports the raw body back via a registered callback, since the
// refresher drains responses from its own root-context loop rather
// than a per-call blocking wait.
type ManagementDispatcher struct {
	client *http.Client
	system *config.System
	logger *slog.Logger

	onResponse func(token string, body []byte, err error)
}

// NewManagementDispatcher builds a ManagementDispatcher.
func NewManagementDispatcher(client *http.Client, system *config.System, logger *slog.Logger) *ManagementDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManagementDispatcher{client: client, system: system, logger: logger}
}

// OnResponse registers the callback invoked once a dispatched fetch
// completes.
func (d *ManagementDispatcher) OnResponse(f func(token string, body []byte, err error)) {
	d.onResponse = f
}

// Dispatch implements refresher.Dispatcher.
func (d *ManagementDispatcher) Dispatch(ctx context.Context, kind refresher.CallKind, svc *authrep.ServiceRef) (string, error) {
	token := uuid.NewString()
	go d.perform(token, kind, svc)
	return token, nil
}

func (d *ManagementDispatcher) perform(token string, kind refresher.CallKind, svc *authrep.ServiceRef) {
	path := fmt.Sprintf("/admin/api/services/%s/proxy/configs/production/latest.json", svc.ID)
	if kind == refresher.CallMappingRules {
		path = fmt.Sprintf("/admin/api/services/%s/proxy/mapping_rules.json", svc.ID)
	}

	req, err := http.NewRequest(http.MethodGet, strings.TrimSuffix(d.system.URL, "/")+path, nil)
	if err != nil {
		d.report(token, nil, err)
		return
	}
	if d.system.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.system.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.report(token, nil, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.report(token, nil, err)
		return
	}
	d.report(token, body, nil)
}

func (d *ManagementDispatcher) report(token string, body []byte, err error) {
	if d.onResponse == nil {
		d.logger.Warn("management dispatcher response dropped: no handler registered", "token", token)
		return
	}
	d.onResponse(token, body, err)
}
