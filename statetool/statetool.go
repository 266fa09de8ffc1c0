// Package statetool exposes execution state to agents as llmtools-go tools.
package statetool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/flexigpt/llmtools-go"
	llmtoolsgoSpec "github.com/flexigpt/llmtools-go/spec"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

const (
	FuncIDGetVariable llmtoolsgoSpec.FuncID = "github.com/flexigpt/lime-go/statetool.GetVariable"
	FuncIDSetVariable llmtoolsgoSpec.FuncID = "github.com/flexigpt/lime-go/statetool.SetVariable"
)

type GetVariableArgs struct {
	Variable string `json:"variable"`
}

// GetVariableResult maps the requested expression to its value (null when absent).
type GetVariableResult map[string]any

// SetVariableArgs carries the value as raw JSON so numbers decode the same way as `@state` literals.
type SetVariableArgs struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type SetVariableResult struct {
	Value any `json:"value"`
}

// NewStateRegistry creates an llmtools-go Registry holding only the state tools.
func NewStateRegistry(m *execmodel.Model, opts ...llmtools.RegistryOption) (*llmtools.Registry, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	r, err := llmtools.NewRegistry(opts...)
	if err != nil {
		return nil, err
	}
	if err := Register(r, m); err != nil {
		return nil, err
	}
	return r, nil
}

// Register registers the state tools into an existing registry, bound to m by closure.
func Register(r *llmtools.Registry, m *execmodel.Model) error {
	if r == nil {
		return errors.New("nil registry")
	}
	if m == nil {
		return errors.New("nil model")
	}

	if err := llmtools.RegisterTypedAsTextTool[GetVariableArgs, GetVariableResult](
		r,
		GetVariableTool(),
		func(ctx context.Context, args GetVariableArgs) (GetVariableResult, error) {
			return GetVariable(ctx, m, args)
		},
	); err != nil {
		return err
	}

	return llmtools.RegisterTypedAsTextTool[SetVariableArgs, SetVariableResult](
		r,
		SetVariableTool(),
		func(ctx context.Context, args SetVariableArgs) (SetVariableResult, error) {
			return SetVariable(ctx, m, args)
		},
	)
}

// GetVariable resolves args.Variable with the full path syntax (range, index, dotted).
func GetVariable(ctx context.Context, m *execmodel.Model, args GetVariableArgs) (GetVariableResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(args.Variable)
	if name == "" {
		return nil, errors.Wrap(spec.ErrInvalidArgument, "variable is required")
	}
	v, _ := m.Context().GetVariableValue(name)
	return GetVariableResult{name: v}, nil
}

// SetVariable binds args.Value under args.Name, overwriting any previous value.
func SetVariable(ctx context.Context, m *execmodel.Model, args SetVariableArgs) (SetVariableResult, error) {
	if err := ctx.Err(); err != nil {
		return SetVariableResult{}, err
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return SetVariableResult{}, errors.Wrap(spec.ErrInvalidArgument, "name is required")
	}
	var value any
	if len(args.Value) > 0 {
		v, err := execmodel.DecodeJSONLiteral(string(args.Value))
		if err != nil {
			return SetVariableResult{}, errors.Mark(err, spec.ErrInvalidArgument)
		}
		value = v
	}
	m.Context().SetVariable(name, value)
	return SetVariableResult{Value: value}, nil
}

func Tools() []llmtoolsgoSpec.Tool {
	return []llmtoolsgoSpec.Tool{
		GetVariableTool(),
		SetVariableTool(),
	}
}

func GetVariableTool() llmtoolsgoSpec.Tool {
	return llmtoolsgoSpec.Tool{
		SchemaVersion: llmtoolsgoSpec.SchemaVersion,
		ID:            "019c1a52-6f0e-7c4a-9d7b-2f4e8a1c3b01",
		Slug:          "state.get_variable",
		Version:       "v1.0.0",
		DisplayName:   "State Get Variable",
		Description:   "Get a variable from the shared state. Supports dotted paths, indexing, slicing and range().",
		Tags:          []string{"state"},
		ArgSchema: llmtoolsgoSpec.JSONSchema(`{
		  "$schema":"http://json-schema.org/draft-07/schema#",
		  "type":"object",
		  "properties":{
		    "variable":{"type":"string"}
		  },
		  "required":["variable"],
		  "additionalProperties":false
		}`),
		GoImpl:     llmtoolsgoSpec.GoToolImpl{FuncID: FuncIDGetVariable},
		CreatedAt:  llmtoolsgoSpec.SchemaStartTime,
		ModifiedAt: llmtoolsgoSpec.SchemaStartTime,
	}
}

func SetVariableTool() llmtoolsgoSpec.Tool {
	return llmtoolsgoSpec.Tool{
		SchemaVersion: llmtoolsgoSpec.SchemaVersion,
		ID:            "019c1a52-6f0e-7c4a-9d7b-2f4e8a1c3b02",
		Slug:          "state.set_variable",
		Version:       "v1.0.0",
		DisplayName:   "State Set Variable",
		Description:   "Set a variable in the shared state so later template steps can use it.",
		Tags:          []string{"state"},
		ArgSchema: llmtoolsgoSpec.JSONSchema(`{
		  "$schema":"http://json-schema.org/draft-07/schema#",
		  "type":"object",
		  "properties":{
		    "name":{"type":"string"},
		    "value":{"type":["string","array","object","integer","number","boolean","null"]}
		  },
		  "required":["name","value"],
		  "additionalProperties":false
		}`),
		GoImpl:     llmtoolsgoSpec.GoToolImpl{FuncID: FuncIDSetVariable},
		CreatedAt:  llmtoolsgoSpec.SchemaStartTime,
		ModifiedAt: llmtoolsgoSpec.SchemaStartTime,
	}
}
