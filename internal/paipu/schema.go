package paipu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

// recordSchema is the subset of tenhou.net/6 the analysis needs.
var recordSchema = map[string]any{
	"$schema":  "https://json-schema.org/draft/2020-12/schema",
	"type":     "object",
	"required": []string{"name", "rule", "log"},
	"properties": map[string]any{
		"title": map[string]any{"type": "array"},
		"name": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string"},
		},
		"rule": map[string]any{
			"type":       "object",
			"required":   []string{"disp"},
			"properties": map[string]any{"disp": map[string]any{"type": "string"}},
		},
		"log": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "array",
				"minItems": 1,
				"prefixItems": []any{
					map[string]any{
						"type":     "array",
						"minItems": 2,
						"items":    map[string]any{"type": "integer", "minimum": 0},
					},
				},
			},
		},
	},
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(recordSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("paipu.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("paipu.json")
})

func validate(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return common.NewAppError("SCHEMA", "compile paipu schema", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return common.InvalidInputf("paipu is not JSON: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		return common.InvalidInputf("paipu does not match the record format: %v", err)
	}
	return nil
}
