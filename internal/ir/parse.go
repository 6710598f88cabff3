package ir

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON-encoded Workflow IR.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("ir: decode json: %w", err)
	}
	return &w, nil
}

// ParseYAML decodes a YAML-authored Workflow IR. It converges on the same
// struct (and the same downstream Validate path) as Parse — a convenience
// for authors who prefer YAML, not a second IR format.
func ParseYAML(data []byte) (*Workflow, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("ir: decode yaml: %w", err)
	}
	normalized := normalizeYAML(generic)
	asJSON, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("ir: re-encode yaml as json: %w", err)
	}
	return Parse(asJSON)
}

// normalizeYAML converts the map[interface{}]interface{} / []interface{}
// trees that yaml.v3 can produce into the map[string]any / []any shapes
// encoding/json expects, so Parse can reuse the same struct tags.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return t
	}
}

// ToJSON re-serializes a Workflow to canonical JSON bytes.
func ToJSON(w *Workflow) ([]byte, error) {
	return json.Marshal(w)
}
