package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/odatad/pkg/entity"
)

// Validator validates write payloads against the compiled schemas of every
// entity type and mode. It is immutable and safe for concurrent use.
type Validator struct {
	schemas map[string]map[Mode]*jsonschema.Schema
}

// NewValidator compiles the payload schemas for every type in model.
func NewValidator(model *entity.Model) (*Validator, error) {
	v := &Validator{schemas: make(map[string]map[Mode]*jsonschema.Schema)}
	for _, t := range model.Types() {
		byMode := make(map[Mode]*jsonschema.Schema, len(Modes))
		for _, mode := range Modes {
			schema, err := compileSchema(t, mode)
			if err != nil {
				return nil, fmt.Errorf("compiling %s %s schema: %w", t.Name, mode, err)
			}
			byMode[mode] = schema
		}
		v.schemas[t.Set] = byMode
	}
	return v, nil
}

func compileSchema(t *entity.Type, mode Mode) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	schemaBytes, err := json.Marshal(PayloadSchema(t, mode))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	url := fmt.Sprintf("%s.%s.json", t.Set, mode)
	if err := compiler.AddResource(url, bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(url)
}

// Validate checks body against the schema of set for mode. An unknown set is
// reported as a schema error.
func (v *Validator) Validate(set string, mode Mode, body map[string]any) *Result {
	result := &Result{}

	schema := v.schemas[set][mode]
	if schema == nil {
		result.add("", CodeSchema, fmt.Sprintf("no %s schema for %q", mode, set))
		return result
	}
	if body == nil {
		result.add("", CodeNotObject, "request body must be a JSON object")
		return result
	}

	if err := schema.Validate(body); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			collectViolations(validationErr, result)
		} else {
			result.add("", CodeSchema, err.Error())
		}
	}
	return result
}

// collectViolations flattens the cause tree into one violation per leaf.
func collectViolations(err *jsonschema.ValidationError, result *Result) {
	if len(err.Causes) == 0 {
		code := codeForKeyword(err.KeywordLocation)
		field := extractFieldFromPath(err.InstanceLocation)
		if field == "" && (code == CodeRequired || code == CodeUnknownField) {
			// Object-level keywords name the property in the message.
			field = quotedName(err.Message)
		}
		result.add(field, code, err.Message)
		return
	}

	for _, cause := range err.Causes {
		collectViolations(cause, result)
	}
}

// extractFieldFromPath extracts field name from JSON Pointer path
func extractFieldFromPath(path string) string {
	if path == "" || path == "/" {
		return ""
	}
	path = strings.TrimPrefix(path, "/")
	path = strings.ReplaceAll(path, "/", ".")
	// JSON Pointer escapes
	path = strings.ReplaceAll(path, "~1", "/")
	return strings.ReplaceAll(path, "~0", "~")
}

func codeForKeyword(location string) string {
	keyword := location[strings.LastIndex(location, "/")+1:]
	switch keyword {
	case "required":
		return CodeRequired
	case "type":
		return CodeType
	case "format", "pattern":
		return CodeFormat
	case "minimum":
		return CodeMin
	case "additionalProperties":
		return CodeUnknownField
	}
	return CodeSchema
}

func quotedName(msg string) string {
	start := strings.IndexByte(msg, '\'')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(msg[start+1:], '\'')
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
