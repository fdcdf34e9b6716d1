package config

import (
	"encoding/json"
	"fmt"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/credentials"
)

// wireConfig mirrors Config but with Credentials fields left as
// sourceListWire so encoding/json has a concrete type to unmarshal
// into before conversion to the real interface-bearing domain types.
type wireConfig struct {
	API                 string        `json:"api"`
	System              *System       `json:"system,omitempty"`
	Backend             *Backend      `json:"backend,omitempty"`
	Services            []wireService `json:"services"`
	Cache               bool          `json:"cache,omitempty"`
	PassthroughMetadata bool          `json:"passthrough_metadata,omitempty"`
}

type wireService struct {
	ID           string            `json:"id"`
	SystemName   string            `json:"system_name,omitempty"`
	Environment  Environment       `json:"environment,omitempty"`
	Token        string            `json:"token,omitempty"`
	Authorities  []string          `json:"authorities"`
	Credentials  wireCredentials   `json:"credentials"`
	MappingRules []authrep.MappingRule `json:"mapping_rules"`
}

type wireCredentials struct {
	UserKey sourceListWire `json:"user_key,omitempty"`
	AppID   sourceListWire `json:"app_id,omitempty"`
	AppKey  sourceListWire `json:"app_key,omitempty"`
}

// UnmarshalJSON decodes the api/system/backend/services/cache document
// described in spec.md §6, routing each Service's credential sources
// through sourceWire so the tagged Header/QueryString/Filter variants
// resolve to concrete source.Source values.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w wireConfig
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if w.API != "v1" {
		return fmt.Errorf("config: unsupported api discriminator %q, expected \"v1\"", w.API)
	}

	c.API = w.API
	c.System = w.System
	c.Backend = w.Backend
	c.Cache = w.Cache
	c.PassthroughMetadata = w.PassthroughMetadata
	c.Services = make([]Service, 0, len(w.Services))
	for _, ws := range w.Services {
		c.Services = append(c.Services, Service{
			ServiceRef: authrep.ServiceRef{
				ID:          ws.ID,
				Token:       ws.Token,
				Authorities: ws.Authorities,
				Credentials: credentials.Credentials{
					UserKey: ws.Credentials.UserKey.toSources(),
					AppID:   ws.Credentials.AppID.toSources(),
					AppKey:  ws.Credentials.AppKey.toSources(),
				},
				MappingRules: ws.MappingRules,
			},
			SystemName:  ws.SystemName,
			Environment: ws.Environment,
		})
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON's api/system/backend
// reshaping; the operation/source trees are not round-tripped back to
// their tagged wire form since nothing in this repo re-serializes a
// live configuration (only fetched/loaded documents, never emitted).
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias struct {
		API                 string    `json:"api"`
		System              *System   `json:"system,omitempty"`
		Backend             *Backend  `json:"backend,omitempty"`
		Cache               bool      `json:"cache,omitempty"`
		PassthroughMetadata bool      `json:"passthrough_metadata,omitempty"`
		ServiceIDs          []string  `json:"service_ids"`
	}
	ids := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		ids = append(ids, s.ID)
	}
	return json.Marshal(alias{
		API:                 c.API,
		System:              c.System,
		Backend:             c.Backend,
		Cache:               c.Cache,
		PassthroughMetadata: c.PassthroughMetadata,
		ServiceIDs:          ids,
	})
}
