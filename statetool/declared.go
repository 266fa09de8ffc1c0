package statetool

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	llmtoolsgoSpec "github.com/flexigpt/llmtools-go/spec"

	"github.com/flexigpt/lime-go/spec"
)

const funcIDDeclaredPrefix = "github.com/flexigpt/lime-go/statetool/declared."

var typeMap = map[string]string{
	"str":     "string",
	"string":  "string",
	"int":     "integer",
	"integer": "integer",
	"float":   "number",
	"number":  "number",
	"bool":    "boolean",
	"boolean": "boolean",
	"list":    "array",
	"array":   "array",
	"dict":    "object",
	"object":  "object",
}

// MapType maps a declared parameter type to a JSON Schema type. Unknown names map to "string".
func MapType(t string) string {
	if js, ok := typeMap[strings.ToLower(strings.TrimSpace(t))]; ok {
		return js
	}
	return "string"
}

// ToolSpec converts a tool declared by a `tools` effect into an llmtools-go tool.
// The ID is a name-derived UUID so repeated declarations are stable.
func ToolSpec(t spec.Tool) (llmtoolsgoSpec.Tool, error) {
	props := make(map[string]any, len(t.Params))
	required := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		props[p.Name] = map[string]any{"type": MapType(p.Type)}
		required = append(required, p.Name)
	}
	schema, err := json.Marshal(map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	})
	if err != nil {
		return llmtoolsgoSpec.Tool{}, err
	}

	desc := "Declared tool " + t.Name + "."
	if len(t.ReturnTypes) > 0 {
		returns := make([]string, 0, len(t.ReturnTypes))
		for _, r := range t.ReturnTypes {
			returns = append(returns, MapType(r))
		}
		desc += " Returns: " + strings.Join(returns, ", ") + "."
	}

	return llmtoolsgoSpec.Tool{
		SchemaVersion: llmtoolsgoSpec.SchemaVersion,
		ID:            uuid.NewSHA1(uuid.NameSpaceURL, []byte(funcIDDeclaredPrefix+t.Name)).String(),
		Slug:          t.Name,
		Version:       "v1.0.0",
		DisplayName:   t.Name,
		Description:   desc,
		Tags:          []string{"declared"},
		ArgSchema:     llmtoolsgoSpec.JSONSchema(schema),
		GoImpl:        llmtoolsgoSpec.GoToolImpl{FuncID: llmtoolsgoSpec.FuncID(funcIDDeclaredPrefix + t.Name)},
		CreatedAt:     llmtoolsgoSpec.SchemaStartTime,
		ModifiedAt:    llmtoolsgoSpec.SchemaStartTime,
	}, nil
}

// ToolSpecs converts every declared tool in order.
func ToolSpecs(tools []spec.Tool) ([]llmtoolsgoSpec.Tool, error) {
	out := make([]llmtoolsgoSpec.Tool, 0, len(tools))
	for _, t := range tools {
		ts, err := ToolSpec(t)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}
