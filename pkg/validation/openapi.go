package validation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/odatad/pkg/entity"
)

const jsonMediaType = "application/json"

// BuildDocument describes every entity set of model as an OpenAPI 3.0
// document. The document is loaded and validated with kin-openapi before it
// is returned, so a malformed model is reported here rather than to clients.
func BuildDocument(ctx context.Context, model *entity.Model, version string) (*openapi3.T, error) {
	data, err := json.Marshal(documentMap(model, version))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI document: %w", err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}

func documentMap(model *entity.Model, version string) map[string]any {
	if version == "" {
		version = "dev"
	}
	paths := map[string]any{}
	schemas := map[string]any{
		"Error": errorSchema(),
	}

	for _, t := range model.Types() {
		schemas[t.Name] = entitySchema(t)
		schemas[t.Name+"Write"] = writeSchema(t)

		paths["/"+t.Set] = map[string]any{
			"get": map[string]any{
				"operationId": "list" + t.Set,
				"summary":     "List " + t.Set,
				"tags":        []any{t.Set},
				"parameters":  queryParameters(true),
				"responses": map[string]any{
					"200": jsonResponse("Matching entities or aggregate rows", collectionSchema(t)),
					"400": errorResponse("Malformed query"),
				},
			},
			"post": map[string]any{
				"operationId": "create" + t.Name,
				"summary":     "Create a " + t.Name,
				"tags":        []any{t.Set},
				"requestBody": writeBody(t),
				"responses": map[string]any{
					"201": jsonResponse("Created", ref(t.Name)),
					"400": errorResponse("Invalid payload"),
					"409": errorResponse("Key already exists"),
				},
			},
		}

		paths["/"+t.Set+"({Id})"] = map[string]any{
			"parameters": []any{keyParameter()},
			"get": map[string]any{
				"operationId": "get" + t.Name,
				"tags":        []any{t.Set},
				"parameters":  queryParameters(false),
				"responses": map[string]any{
					"200": jsonResponse("The entity", ref(t.Name)),
					"400": errorResponse("Malformed query"),
					"404": errorResponse("No entity with this key"),
				},
			},
			"put": map[string]any{
				"operationId": "replace" + t.Name,
				"summary":     "Replace every mutable property",
				"tags":        []any{t.Set},
				"requestBody": writeBody(t),
				"responses": map[string]any{
					"200": jsonResponse("The replaced entity", ref(t.Name)),
					"400": errorResponse("Invalid payload"),
					"404": errorResponse("No entity with this key"),
				},
			},
			"patch": map[string]any{
				"operationId": "patch" + t.Name,
				"summary":     "Merge the given properties",
				"tags":        []any{t.Set},
				"requestBody": writeBody(t),
				"responses": map[string]any{
					"200": jsonResponse("The patched entity", ref(t.Name)),
					"400": errorResponse("Invalid payload"),
					"404": errorResponse("No entity with this key"),
				},
			},
			"delete": map[string]any{
				"operationId": "delete" + t.Name,
				"tags":        []any{t.Set},
				"responses": map[string]any{
					"204": map[string]any{"description": "Deleted, or already absent"},
				},
			},
		}

		for _, n := range t.Navigations {
			method := "put"
			if n.Collection {
				method = "post"
			}
			paths["/"+t.Set+"({Id})/"+n.Name+"/$ref"] = map[string]any{
				"parameters": []any{keyParameter()},
				method: map[string]any{
					"operationId": "link" + t.Name + n.Name,
					"summary":     "Link " + n.Name + " to an entity of " + n.Target,
					"tags":        []any{t.Set},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							jsonMediaType: map[string]any{"schema": map[string]any{
								"type":     "object",
								"required": []any{"@odata.id"},
								"properties": map[string]any{
									"@odata.id": map[string]any{
										"type":    "string",
										"example": n.Target + "(1)",
									},
								},
							}},
						},
					},
					"responses": map[string]any{
						"204": map[string]any{"description": "Linked"},
						"400": errorResponse("Unresolved reference"),
						"404": errorResponse("Unknown entity set"),
					},
				},
			}
		}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "odatad",
			"description": "OData-style entity sets with query options",
			"version":     version,
		},
		"paths":      paths,
		"components": map[string]any{"schemas": schemas},
	}
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func openAPIProperty(p entity.Property) map[string]any {
	var s map[string]any
	switch p.Kind {
	case entity.KindInt64:
		s = map[string]any{"type": "integer", "format": "int64"}
	case entity.KindDecimal:
		s = map[string]any{"type": "number"}
	case entity.KindDateTimeOffset:
		s = map[string]any{"type": "string", "format": "date-time"}
	case entity.KindBoolean:
		s = map[string]any{"type": "boolean"}
	default:
		s = map[string]any{"type": "string"}
	}
	if p.Nullable {
		s["nullable"] = true
	}
	return s
}

// entitySchema lists the scalar properties. Expanded navigations are added
// to the record at runtime and stay outside the schema.
func entitySchema(t *entity.Type) map[string]any {
	props := map[string]any{}
	for _, p := range t.Properties {
		props[p.Name] = openAPIProperty(p)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func writeSchema(t *entity.Type) map[string]any {
	props := map[string]any{}
	for _, p := range t.Properties {
		props[p.Name] = openAPIProperty(p)
	}
	for _, n := range t.Navigations {
		if n.Collection {
			continue
		}
		props[n.Name+entity.BindAnnotation] = map[string]any{
			"type":     "string",
			"nullable": true,
			"example":  n.Target + "(1)",
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func writeBody(t *entity.Type) map[string]any {
	return map[string]any{
		"required": true,
		"content": map[string]any{
			jsonMediaType: map[string]any{"schema": ref(t.Name + "Write")},
		},
	}
}

func collectionSchema(t *entity.Type) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":  "array",
				"items": ref(t.Name),
			},
			"@odata.count":    map[string]any{"type": "integer"},
			"@odata.nextLink": map[string]any{"type": "string"},
		},
	}
}

func errorSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":     "object",
		"required": []any{"error"},
		"properties": map[string]any{
			"error": map[string]any{
				"type":     "object",
				"required": []any{"code", "message"},
				"properties": map[string]any{
					"code":    str,
					"message": str,
					"target":  str,
					"hint":    str,
				},
			},
		},
	}
}

func jsonResponse(description string, schema map[string]any) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			jsonMediaType: map[string]any{"schema": schema},
		},
	}
}

func errorResponse(description string) map[string]any {
	return jsonResponse(description, ref("Error"))
}

func keyParameter() map[string]any {
	return map[string]any{
		"name":     entity.KeyProperty,
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "integer", "format": "int64", "minimum": 1},
	}
}

func queryParameters(collection bool) []any {
	param := func(name, description string, schema map[string]any) map[string]any {
		return map[string]any{
			"name":        name,
			"in":          "query",
			"description": description,
			"schema":      schema,
		}
	}
	str := map[string]any{"type": "string"}
	params := []any{
		param("$select", "Comma-separated properties to return", str),
		param("$expand", "Navigations to include inline, with optional nested options", str),
	}
	if !collection {
		return params
	}
	nonNegative := map[string]any{"type": "integer", "minimum": 0}
	return append(params,
		param("$filter", "Boolean filter expression", str),
		param("$orderby", "Sort keys, each optionally followed by asc or desc", str),
		param("$skip", "Number of results to skip", nonNegative),
		param("$top", "Maximum number of results", nonNegative),
		param("$count", "Include the total match count", map[string]any{"type": "boolean"}),
		param("$apply", "Aggregation pipeline of filter, groupby and aggregate steps", str),
	)
}
