package statetool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flexigpt/llmtools-go"
	llmtoolsgoSpec "github.com/flexigpt/llmtools-go/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

func callText(t *testing.T, r *llmtools.Registry, id llmtoolsgoSpec.FuncID, in string) map[string]any {
	t.Helper()
	outs, err := r.Call(t.Context(), id, json.RawMessage(in))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.NotNil(t, outs[0].TextItem)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(outs[0].TextItem.Text), &got))
	return got
}

func TestRegistry_RoundTrip(t *testing.T) {
	t.Parallel()

	m := execmodel.New()
	r, err := NewStateRegistry(m)
	require.NoError(t, err)

	tools := r.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "state.get_variable", tools[0].Slug)
	assert.Equal(t, "state.set_variable", tools[1].Slug)

	got := callText(t, r, FuncIDSetVariable, `{"name":"user","value":{"name":"ada","tags":["x","y"]}}`)
	assert.Equal(t, map[string]any{"value": map[string]any{"name": "ada", "tags": []any{"x", "y"}}}, got)

	v, ok := m.Context().GetVariableValue("user.tags[1]")
	require.True(t, ok)
	assert.Equal(t, "y", v)

	got = callText(t, r, FuncIDGetVariable, `{"variable":"user.name"}`)
	assert.Equal(t, map[string]any{"user.name": "ada"}, got)

	got = callText(t, r, FuncIDGetVariable, `{"variable":"missing"}`)
	assert.Equal(t, map[string]any{"missing": nil}, got)
}

func TestRegistry_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	r, err := NewStateRegistry(execmodel.New())
	require.NoError(t, err)
	_, err = r.Call(t.Context(), FuncIDGetVariable, json.RawMessage(`{"variable":"x","extra":1}`))
	require.Error(t, err)
}

func TestSetVariable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    SetVariableArgs
		want    any
		wantErr error
	}{
		{name: "integer", args: SetVariableArgs{Name: "n", Value: json.RawMessage(`3`)}, want: 3},
		{name: "float", args: SetVariableArgs{Name: "n", Value: json.RawMessage(`2.5`)}, want: 2.5},
		{name: "null", args: SetVariableArgs{Name: "n", Value: json.RawMessage(`null`)}, want: nil},
		{name: "missing value", args: SetVariableArgs{Name: "n"}, want: nil},
		{name: "blank name", args: SetVariableArgs{Name: " ", Value: json.RawMessage(`1`)}, wantErr: spec.ErrInvalidArgument},
		{name: "bad json", args: SetVariableArgs{Name: "n", Value: json.RawMessage(`{`)}, wantErr: spec.ErrInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := execmodel.New()
			res, err := SetVariable(t.Context(), m, tc.args)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Value)
			assert.Equal(t, map[string]any{"n": tc.want}, m.Context().Variables())
		})
	}
}

func TestGetVariable_Errors(t *testing.T) {
	t.Parallel()

	m := execmodel.New()
	_, err := GetVariable(t.Context(), m, GetVariableArgs{})
	require.ErrorIs(t, err, spec.ErrInvalidArgument)

	_, err = NewStateRegistry(nil)
	require.Error(t, err)
	require.Error(t, Register(nil, m))
}

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"str": "string", "String": "string", "int": "integer", "integer": "integer",
		"float": "number", "number": "number", "bool": "boolean", "Boolean": "boolean",
		"list": "array", "array": "array", "dict": "object", "object": "object",
		"bytes": "string", "": "string",
	}
	for in, want := range tests {
		assert.Equal(t, want, MapType(in), in)
	}
}

func TestToolSpec(t *testing.T) {
	t.Parallel()

	decl := spec.Tool{
		Name:        "search",
		Params:      []spec.Param{{Name: "query", Type: "str"}, {Name: "limit", Type: "int"}},
		ReturnTypes: []string{"list"},
	}
	ts, err := ToolSpec(decl)
	require.NoError(t, err)
	assert.Equal(t, "search", ts.Slug)
	assert.Equal(t, llmtoolsgoSpec.SchemaVersion, ts.SchemaVersion)
	assert.Contains(t, ts.Description, "Returns: array.")
	assert.JSONEq(t, `{
	  "$schema":"http://json-schema.org/draft-07/schema#",
	  "type":"object",
	  "properties":{"query":{"type":"string"},"limit":{"type":"integer"}},
	  "required":["query","limit"],
	  "additionalProperties":false
	}`, string(ts.ArgSchema))

	again, err := ToolSpec(decl)
	require.NoError(t, err)
	assert.Equal(t, ts.ID, again.ID)

	all, err := ToolSpecs([]spec.Tool{decl, {Name: "noop"}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.JSONEq(t, `{
	  "$schema":"http://json-schema.org/draft-07/schema#",
	  "type":"object","properties":{},"required":[],"additionalProperties":false
	}`, string(all[1].ArgSchema))

	r, err := llmtools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.RegisterTool(all[0], func(_ context.Context, _ json.RawMessage) ([]llmtoolsgoSpec.ToolStoreOutputUnion, error) {
		return nil, nil
	}))
}
