// Package credentials implements the credential resolver (C4): it
// combines the configured user_key/app_id/app_key sources into an
// ordered Application identity list.
package credentials

import (
	"errors"

	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/source"
)

// ErrNotFound is CredentialsError::NotFound from spec.md §3/§4.4: every
// configured source failed for every credential kind.
var ErrNotFound = errors.New("credentials: no application identity resolved")

// Application is one of {UserKey, AppId, OAuthToken}. Only UserKey and
// AppId are ever produced by Resolve; OAuthToken is carried in the
// type for forward-compatibility with host ABIs that inject it
// directly (spec.md §3 names it as a valid Application variant without
// describing a resolver path for it).
type Application struct {
	Kind   ApplicationKind
	ID     string
	Key    string
	HasKey bool
}

type ApplicationKind int

const (
	KindUserKey ApplicationKind = iota
	KindAppID
	KindOAuthToken
)

// Credentials holds the three independent, ordered source lists.
type Credentials struct {
	UserKey []source.Source
	AppID   []source.Source
	AppKey  []source.Source
}

// Resolve implements spec.md §4.4 steps 1-4: user_key sources first,
// then app_id (with an embedded key taken from its own second stack
// entry), falling back to independent app_key sources only when app_id
// produced no embedded key. The result lists UserKey before AppId, in
// that order; an empty result is ErrNotFound.
func Resolve(c Credentials, req source.Request, ctx *operation.Context) ([]Application, error) {
	var apps []Application

	if id, ok := resolveFirst(c.UserKey, req, ctx); ok {
		apps = append(apps, Application{Kind: KindUserKey, ID: id})
	}

	if stk, ok := resolveFirstStack(c.AppID, req, ctx); ok {
		app := Application{Kind: KindAppID, ID: stk[0]}
		if len(stk) > 1 {
			app.Key = stk[1]
			app.HasKey = true
		} else if key, ok := resolveFirst(c.AppKey, req, ctx); ok {
			app.Key = key
			app.HasKey = true
		}
		apps = append(apps, app)
	}

	if len(apps) == 0 {
		return nil, ErrNotFound
	}
	return apps, nil
}

func resolveFirst(sources []source.Source, req source.Request, ctx *operation.Context) (string, bool) {
	stk, ok := resolveFirstStack(sources, req, ctx)
	if !ok || len(stk) == 0 {
		return "", false
	}
	return stk[0], true
}

func resolveFirstStack(sources []source.Source, req source.Request, ctx *operation.Context) ([]string, bool) {
	for _, s := range sources {
		stk, err := s.Resolve(req, ctx)
		if err == nil && len(stk) > 0 {
			return stk, true
		}
	}
	return nil, false
}
