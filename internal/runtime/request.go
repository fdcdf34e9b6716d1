// Package runtime is the host runtime (C8): a net/http server binding
// the request filter driver (C6) and config refresher (C7) to real
// sockets, Redis, and an outbound HTTP client, plus a /metrics
// endpoint. It is the one concrete host ABI binding this repo ships
// (spec.md §1); a real proxy-wasm ABI binding is left as an extension
// point.
package runtime

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/3scale-labs/authrep-filter/internal/value"
)

const filterMetadataHeader = "X-Filter-Metadata"

// httpRequest adapts *http.Request to source.Request. Filter-chain
// metadata has no standalone HTTP equivalent, so this binding accepts
// it as a JSON blob in a demo-only header, documented as such.
type httpRequest struct {
	req *http.Request
}

func newHTTPRequest(req *http.Request) httpRequest {
	return httpRequest{req: req}
}

func (r httpRequest) Header(name string) (string, bool) {
	values := r.req.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (r httpRequest) Query() url.Values {
	return r.req.URL.Query()
}

func (r httpRequest) FilterMetadata() (value.Value, bool) {
	raw := r.req.Header.Get(filterMetadataHeader)
	if raw == "" {
		return nil, false
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, false
	}
	return value.NewJSON(decoded), true
}
