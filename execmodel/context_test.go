package execmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexigpt/lime-go/spec"
)

type profile struct {
	Name  string
	Email string `json:"email"`
}

func (p profile) Greeting() string { return "hi " + p.Name }

func TestContext_GetVariableValue(t *testing.T) {
	t.Parallel()

	c := NewContext()
	c.SetVariable("items", []any{"a", "b", "c", "d"})
	c.SetVariable("user", map[string]any{"name": "Charlie", "tags": []any{"x", "y"}})
	c.SetVariable("word", "hello")
	c.SetVariable("profile", profile{Name: "Dana", Email: "d@example.com"})
	c.SetVariable("ptr", &profile{Name: "Eve"})
	c.SetVariable("nothing", nil)
	c.SetVariable("matrix", []any{[]any{1, 2}, []any{3, 4}})

	tests := []struct {
		name   string
		expr   string
		want   any
		wantOK bool
	}{
		{"range one arg", "range(3)", []any{0, 1, 2}, true},
		{"range two args", "range(1,4)", []any{1, 2, 3}, true},
		{"range with step", "range(10, 0, -3)", []any{10, 7, 4, 1}, true},
		{"range empty", "range()", nil, false},
		{"range malformed", "range(abc)", nil, false},
		{"range zero step", "range(1,5,0)", nil, false},
		{"range too many args", "range(1,2,3,4)", nil, false},
		{"range empty result", "range(0)", []any{}, true},
		{"index", "items[1]", "b", true},
		{"negative index", "items[-1]", "d", true},
		{"index out of range", "items[10]", nil, false},
		{"index not int", "items[x]", nil, false},
		{"index on missing base", "missing[0]", nil, false},
		{"index on map", "user[0]", nil, false},
		{"slice", "items[0:3]", []any{"a", "b", "c"}, true},
		{"slice open start", "items[:2]", []any{"a", "b"}, true},
		{"slice open end", "items[2:]", []any{"c", "d"}, true},
		{"slice negative", "items[-2:]", []any{"c", "d"}, true},
		{"slice clamped", "items[3:100]", []any{"d"}, true},
		{"slice inverted", "items[3:1]", []any{}, true},
		{"slice malformed", "items[a:b]", nil, false},
		{"string index", "word[1]", "e", true},
		{"string slice", "word[1:3]", "el", true},
		{"nested index", "matrix[1][0]", 3, true},
		{"index of dotted base", "user.tags[1]", "y", true},
		{"plain", "word", "hello", true},
		{"dotted map", "user.name", "Charlie", true},
		{"dotted missing", "user.age", nil, false},
		{"dotted through scalar", "word.length", nil, false},
		{"struct field", "profile.Name", "Dana", true},
		{"struct json tag", "profile.email", "d@example.com", true},
		{"struct method", "profile.Greeting", "hi Dana", true},
		{"pointer field", "ptr.Name", "Eve", true},
		{"nil value is absent", "nothing", nil, false},
		{"unknown", "unknown", nil, false},
		{"blank", "  ", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := c.GetVariableValue(tt.expr)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContext_WindowAndClear(t *testing.T) {
	t.Parallel()

	c := NewContext()
	c.SetVariable("keep", 1)
	c.AddTool(spec.Tool{Name: "add"})
	c.AddToContextWindow("one\n")
	c.AddToContextWindow("two\n")
	require.Equal(t, "one\ntwo\n", c.Window())

	c.Clear()
	assert.Empty(t, c.Window())
	v, ok := c.GetVariableValue("keep")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Len(t, c.Tools(), 1)

	c.ClearTools()
	assert.Empty(t, c.Tools())
}

func TestContext_LoopStateShadowsAndDeletes(t *testing.T) {
	t.Parallel()

	c := NewContext()
	c.SetVariable("x", "persistent")

	c.AddToState("x", "iter")
	v, _ := c.GetVariableValue("x")
	assert.Equal(t, "iter", v)

	c.RemoveFromState("x")
	_, ok := c.GetVariableValue("x")
	assert.False(t, ok, "shadowed variable must not be restored")
}

func TestContext_VariablesIsCopy(t *testing.T) {
	t.Parallel()

	c := NewContext()
	c.SetVariable("a", 1)
	vars := c.Variables()
	vars["b"] = 2
	_, ok := c.GetVariableValue("b")
	assert.False(t, ok)
}
