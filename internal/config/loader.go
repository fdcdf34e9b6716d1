package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format selects the textual ingestion syntax (spec.md §6: "JSON as
// the default ingestion, YAML accepted under a build option" — here a
// CLI/API choice rather than a Go build tag, since the document is
// supplied by a retrieved host at runtime, not compiled in).
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Load parses and validates a configuration document, defaulting to
// JSON. YAML is converted to the same JSON-shaped intermediate tree
// before decoding so the single Config.UnmarshalJSON implementation
// (and its sourceWire/opWire tag dispatch) serves both formats.
func Load(data []byte, format Format) (*Config, error) {
	jsonData := data
	if format == FormatYAML {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("config: yaml parse: %w", err)
		}
		converted, err := json.Marshal(normalizeYAML(generic))
		if err != nil {
			return nil, fmt.Errorf("config: yaml->json bridge: %w", err)
		}
		jsonData = converted
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeYAML recursively converts map[string]interface{} keyed by
// non-string-safe yaml.v3 output (map[string]interface{} already, but
// nested maps from Unmarshal into `any` come back as
// map[string]interface{} too under yaml.v3 — this walks slices to
// apply the same normalization to nested elements) into a tree
// encoding/json can marshal without error.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeYAML(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return val
	}
}
