package graph

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// structSchemaCache avoids re-reflecting the same Go type on every
// structured-output call (intent classification and planning happen once
// per turn, but a long-running host may serve many turns).
var structSchemaCache sync.Map // reflect type name -> map[string]any

// structSchema derives a JSON Schema for v's type via reflection, the same
// technique the rest of the pack uses for config validation, and decodes
// it back into a plain map so it can sit in llm.Options.StructuredOutputSchema
// or be handed straight to a tool schema field.
func structSchema(name string, v any) (map[string]any, error) {
	if cached, ok := structSchemaCache.Load(name); ok {
		return cached.(map[string]any), nil
	}
	r := &jsonschema.Reflector{FieldNameTag: "json"}
	schema := r.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	structSchemaCache.Store(name, decoded)
	return decoded, nil
}
