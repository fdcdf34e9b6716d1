// Package config implements the root configuration data model
// (spec.md §3) plus its JSON/YAML ingestion and validation: the
// versioned, immutable-between-refreshes document a filter instance
// holds in place of the teacher's Postgres-backed application config.
package config

import (
	"fmt"
	"time"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
)

// Environment is a Service's deployment environment.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentUnknown    Environment = "unknown"
)

// Config is the root configuration document, created on filter
// configure and replaced atomically on successful reparse (spec.md §3
// Lifecycle). Zero value is never valid; use Unmarshal plus Validate.
type Config struct {
	API                 string `validate:"required,eq=v1"`
	System              *System
	Backend             *Backend
	Services            []Service `validate:"required,min=1,dive"`
	Cache               bool
	PassthroughMetadata bool
}

// System describes the management-plane endpoint supplying service
// configuration and mapping rules (C7's fetch target).
type System struct {
	URL             string        `json:"url" validate:"required,url"`
	Name            string        `json:"name,omitempty"`
	Token           string        `json:"token,omitempty"`
	UpstreamTimeout time.Duration `json:"upstream_timeout,omitempty"`
	TTL             time.Duration `json:"ttl,omitempty"`
}

// Backend describes the accounting endpoint the driver (C6) dispatches
// authorize-and-report calls against.
type Backend struct {
	URL     string        `json:"url" validate:"required,url"`
	Name    string        `json:"name,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Service is one configured authorization unit. ServiceRef carries the
// fields C5 (internal/authrep) matches against; SystemName is a
// display label for the managing system
// (original_source/src/threescale/service.rs), distinct from the
// authentication Token it already carries.
type Service struct {
	authrep.ServiceRef
	SystemName  string      `json:"system_name,omitempty"`
	Environment Environment `json:"environment,omitempty" validate:"omitempty,oneof=production staging sandbox unknown"`
}

// ServiceRefs returns pointers into c.Services' embedded ServiceRefs,
// the shape C5/C6/C7 operate against. Mutating through these pointers
// (as the refresher does when merging mapping rules) mutates the live
// configuration in place.
func (c *Config) ServiceRefs() []*authrep.ServiceRef {
	refs := make([]*authrep.ServiceRef, len(c.Services))
	for i := range c.Services {
		refs[i] = &c.Services[i].ServiceRef
	}
	return refs
}

// Validate enforces the cross-field invariant go-playground/validator's
// struct tags cannot express on their own: every service needs at
// least one of user_key or app_id sources (spec.md §3), checked at
// load time rather than first request, mirroring
// original_source/src/configuration.rs's serde-time ConfigError.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i := range c.Services {
		svc := &c.Services[i]
		if len(svc.Credentials.UserKey) == 0 && len(svc.Credentials.AppID) == 0 {
			return fmt.Errorf("config: service %q: at least one of user_key or app_id sources is required", svc.ID)
		}
	}
	if c.Backend == nil && !c.PassthroughMetadata {
		return fmt.Errorf("config: a backend is required unless passthrough_metadata is enabled")
	}
	return nil
}
