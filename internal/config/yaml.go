package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes normalizes a config payload to JSON. Files with a
// .json extension pass through untouched; everything else is parsed as
// YAML and re-marshaled so the strict JSON decoder handles both formats.
// The returned bool reports whether a YAML conversion happened.
func coerceToJSONBytes(path string, b []byte) ([]byte, bool, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return b, false, nil
	}

	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, false, fmt.Errorf("parse yaml: %w", err)
	}
	doc = normalizeYAML(doc)

	jb, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("convert yaml to json: %w", err)
	}
	return jb, true, nil
}

// normalizeYAML rewrites YAML's map[any]any shapes into map[string]any so
// the result is JSON-marshalable.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
