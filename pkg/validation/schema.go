package validation

import (
	"github.com/getmockd/odatad/pkg/entity"
)

// Mode is the kind of write a payload is validated for.
type Mode string

const (
	// ModeCreate requires the key.
	ModeCreate Mode = "create"
	// ModeReplace accepts a full entity whose key may be omitted.
	ModeReplace Mode = "replace"
	// ModePatch accepts any non-empty subset of properties.
	ModePatch Mode = "patch"
)

// Modes lists every write mode.
var Modes = []Mode{ModeCreate, ModeReplace, ModePatch}

// propertySchema returns the JSON Schema of a scalar property as it appears
// on the wire.
func propertySchema(p entity.Property) map[string]any {
	var s map[string]any
	switch p.Kind {
	case entity.KindInt64:
		s = map[string]any{"type": "integer"}
		if p.Key {
			s["minimum"] = 1
		}
	case entity.KindDecimal:
		// Decimals may be sent as strings to keep precision.
		s = map[string]any{"type": []any{"number", "string"}}
	case entity.KindDateTimeOffset:
		s = map[string]any{"type": "string", "format": "date-time"}
	case entity.KindBoolean:
		s = map[string]any{"type": "boolean"}
	default:
		s = map[string]any{"type": "string"}
	}
	if p.Nullable {
		if types, ok := s["type"].([]any); ok {
			s["type"] = append(types, "null")
		} else {
			s["type"] = []any{s["type"], "null"}
		}
	}
	return s
}

// PayloadSchema returns the JSON Schema (draft 2020-12) for a write payload of
// type t in the given mode. Single-valued navigations are written as
// "<Nav>@odata.bind" references; other "@" annotations are allowed and
// ignored.
func PayloadSchema(t *entity.Type, mode Mode) map[string]any {
	props := make(map[string]any, len(t.Properties)+len(t.Navigations))
	for _, p := range t.Properties {
		props[p.Name] = propertySchema(p)
	}
	for _, n := range t.Navigations {
		if n.Collection {
			continue
		}
		props[n.Name+entity.BindAnnotation] = map[string]any{
			"type": []any{"string", "null"},
		}
	}

	s := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"title":                t.Name,
		"type":                 "object",
		"properties":           props,
		"patternProperties":    map[string]any{"^@": true},
		"additionalProperties": false,
	}
	switch mode {
	case ModeCreate:
		s["required"] = []any{entity.KeyProperty}
	case ModePatch:
		s["minProperties"] = 1
	}
	return s
}
