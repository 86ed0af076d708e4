// Package manifest parses plugin manifests into validated capability
// declarations. Parsing fails closed: malformed input yields an error
// and an empty permission set, never a partially-parsed manifest.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
)

// manifestSchema constrains the manifest shape before it is decoded
// into domain types. Unknown permission categories are rejected rather
// than silently dropped.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "version"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "permissions": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "network": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "hosts": {"type": "array", "items": {"type": "string", "minLength": 1}}
          }
        },
        "secrets": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "filesystem": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "read": {"type": "array", "items": {"type": "string", "minLength": 1}},
            "write": {"type": "array", "items": {"type": "string", "minLength": 1}}
          }
        },
        "process": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "spawn": {"type": "boolean"}
          }
        }
      }
    }
  },
  "additionalProperties": false
}`

// Parser implements ports.ManifestParser for YAML or JSON manifests.
type Parser struct {
	schema *jsonschema.Schema
}

// NewParser compiles the embedded manifest schema.
func NewParser() (*Parser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest.schema.json", strings.NewReader(manifestSchema)); err != nil {
		return nil, fmt.Errorf("failed to add manifest schema: %w", err)
	}
	schema, err := compiler.Compile("manifest.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// Parse decodes and validates manifest bytes. Any decode or schema
// failure returns an error and the zero manifest (empty permission set).
func (p *Parser) Parse(data []byte) (capabilities.Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return capabilities.Manifest{}, fmt.Errorf("manifest is empty")
	}

	// YAML is a superset of JSON here: decode through YAML, then
	// validate the generic form against the schema.
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return capabilities.Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}

	// jsonschema validation operates on JSON-decoded values; round-trip
	// to normalize YAML types (e.g. map keys, integers).
	normalized, err := json.Marshal(generic)
	if err != nil {
		return capabilities.Manifest{}, fmt.Errorf("failed to normalize manifest: %w", err)
	}
	var doc any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return capabilities.Manifest{}, fmt.Errorf("failed to normalize manifest: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return capabilities.Manifest{}, fmt.Errorf("manifest failed schema validation: %w", err)
	}

	var m capabilities.Manifest
	if err := json.Unmarshal(normalized, &m); err != nil {
		return capabilities.Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}
