// Package authrep implements the AuthRep assembler (C5): matching a
// request's authority to a configured service, resolving credentials,
// walking mapping rules, and aggregating per-metric usage deltas.
package authrep

import (
	"errors"

	"github.com/3scale-labs/authrep-filter/internal/credentials"
)

// ErrNoServiceMatched is raised when no configured service's authority
// glob set matches the request authority.
var ErrNoServiceMatched = errors.New("authrep: no service matched the request authority")

// ErrNoUsageMatch is raised when no mapping rule matched the request,
// so AuthRep cannot be constructed (spec.md §3 invariant).
var ErrNoUsageMatch = errors.New("authrep: no mapping rule matched the request")

// Usage is one (metric, delta) pair a matched mapping rule contributes.
type Usage struct {
	Metric string `json:"metric" yaml:"metric"`
	Delta  int    `json:"delta" yaml:"delta"`
}

// MappingRule is a (method, path-pattern) predicate with associated
// per-metric deltas applied on match. Method is a verb or "any".
// Pattern is a path template with optional "?query" constraints
// (gorilla/mux route syntax), matched as a prefix of the request
// path. Last short-circuits the walk after
// folding in its own usages (see DESIGN.md Open Question resolution).
type MappingRule struct {
	Method  string  `json:"method" yaml:"method" validate:"required"`
	Pattern string  `json:"pattern" yaml:"pattern" validate:"required"`
	Usages  []Usage `json:"usages" yaml:"usages" validate:"required,min=1,dive"`
	Last    bool    `json:"last,omitempty" yaml:"last,omitempty"`
}

// ServiceRef is the slice of a configured service that C5 needs:
// authority glob set, credential sources, and mapping rules. The
// config package embeds this into its own Service type so the two
// packages never import each other.
type ServiceRef struct {
	ID           string                  `json:"id" yaml:"id" validate:"required"`
	Token        string                  `json:"token,omitempty" yaml:"token,omitempty"`
	Authorities  []string                `json:"authorities" yaml:"authorities" validate:"required,min=1"`
	Credentials  credentials.Credentials `json:"credentials" yaml:"credentials"`
	MappingRules []MappingRule           `json:"mapping_rules" yaml:"mapping_rules" validate:"dive"`
}

// AuthRep is the ephemeral, per-request result of the assembler.
type AuthRep struct {
	Service *ServiceRef
	Apps    []credentials.Application
	Usages  map[string]int
}
