package catalog

// Default returns the built-in node-type catalog matching the handlers
// shipped with the engine. Config schemas are JSON Schema fragments checked
// by the graph validator before any execution is attempted.
func Default() *Catalog {
	return New("2026.1",
		NodeType{
			ID:       "start",
			Name:     "Start",
			Category: CategoryFlow,
			ConfigSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": true,
			},
		},
		NodeType{
			ID:       "trigger",
			Name:     "Trigger",
			Category: CategoryFlow,
			ConfigSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": true,
			},
		},
		NodeType{
			ID:       "end",
			Name:     "End",
			Category: CategoryFlow,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"output": map[string]any{"type": "string"},
				},
			},
		},
		NodeType{
			ID:       "model",
			Name:     "Model Invocation",
			Category: CategoryModel,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":      "string",
						"minLength": 1,
						"maxLength": 32768,
					},
					"strategy": map[string]any{
						"type": "string",
						"enum": []string{"weighted", "cheapest", "fastest"},
					},
					"weights": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"quality": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
							"cost":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
							"latency": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
						},
					},
					"max_tokens": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": 128000,
					},
				},
				"required": []string{"prompt"},
			},
		},
		NodeType{
			ID:       "retrieval",
			Name:     "Knowledge Retrieval",
			Category: CategoryRetrieval,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "minLength": 1},
					"top_k": map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
				},
				"required": []string{"query"},
			},
		},
		NodeType{
			ID:       "httprequest",
			Name:     "HTTP Request",
			Category: CategoryAction,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":    map[string]any{"type": "string", "minLength": 1},
					"method": map[string]any{"type": "string", "enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"}},
					"headers": map[string]any{
						"type": "object",
					},
					"body":            map[string]any{"type": "string"},
					"timeout_seconds": map[string]any{"type": "integer", "minimum": 1, "maximum": 300},
				},
				"required": []string{"url"},
			},
		},
		NodeType{
			ID:       "conditional",
			Name:     "Conditional Branch",
			Category: CategoryControl,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mode": map[string]any{"type": "string", "enum": []string{"all", "any"}},
					"conditions": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"field":    map[string]any{"type": "string", "minLength": 1},
								"operator": map[string]any{"type": "string", "enum": []string{"eq", "neq", "gt", "gte", "lt", "lte", "contains", "exists"}},
							},
							"required": []string{"field"},
						},
					},
				},
				"required": []string{"conditions"},
			},
		},
		NodeType{
			ID:       "merge",
			Name:     "Merge",
			Category: CategoryControl,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"include_input": map[string]any{"type": "boolean"},
				},
			},
		},
		NodeType{
			ID:       "transform",
			Name:     "Transform",
			Category: CategoryAction,
			ConfigSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{"type": "string", "minLength": 1},
				},
				"required": []string{"expression"},
			},
		},
	)
}
