/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// reflector derives tool input schemas from typed parameter structs.
var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
}

// inputSchema reflects a parameter struct into JSON-schema properties
// and the required-field list. A nil input means no parameters.
func inputSchema(input any) (map[string]any, []string, error) {
	if input == nil {
		return map[string]any{}, nil, nil
	}

	raw, err := json.Marshal(reflector.Reflect(input))
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling schema: %w", err)
	}

	var decoded struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, fmt.Errorf("decoding schema: %w", err)
	}
	if decoded.Properties == nil {
		decoded.Properties = map[string]any{}
	}
	return decoded.Properties, decoded.Required, nil
}

// AnthropicTools exports the registered tools as Anthropic tool params.
func (r *Registry) AnthropicTools() ([]anthropic.ToolParam, error) {
	defs := r.Definitions()
	out := make([]anthropic.ToolParam, 0, len(defs))
	for _, def := range defs {
		properties, required, err := inputSchema(def.Input)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		out = append(out, anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		})
	}
	return out, nil
}

// GeminiDeclarations exports the registered tools as Gemini function
// declarations.
func (r *Registry) GeminiDeclarations() ([]*genai.FunctionDeclaration, error) {
	defs := r.Definitions()
	out := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		schema := &genai.Schema{Type: "object", Properties: map[string]*genai.Schema{}}
		if def.Input != nil {
			raw, err := json.Marshal(reflector.Reflect(def.Input))
			if err != nil {
				return nil, fmt.Errorf("tool %s: marshaling schema: %w", def.Name, err)
			}
			if err := json.Unmarshal(raw, schema); err != nil {
				return nil, fmt.Errorf("tool %s: decoding schema: %w", def.Name, err)
			}
			schema.Type = "object"
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return out, nil
}
