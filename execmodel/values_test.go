package execmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	t.Parallel()

	var nilPtr *profile
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"empty list", []any{}, false},
		{"list", []any{0}, true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"a": nil}, true},
		{"zero int", 0, false},
		{"int", -3, true},
		{"zero float", 0.0, false},
		{"float", 0.5, true},
		{"nil pointer", nilPtr, false},
		{"struct", profile{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Truthy(tt.in))
		})
	}
}

func TestStringify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"int", 42, "42"},
		{"float", 1.5, "1.5"},
		{"whole float", 2.0, "2"},
		{"bool", true, "true"},
		{"list", []any{"a", 1}, `["a",1]`},
		{"map", map[string]any{"b": 1, "a": "<x>"}, `{"a":"<x>","b":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Stringify(tt.in))
		})
	}
}

func TestDecodeJSONLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    any
		wantErr bool
	}{
		{"string", `"test_value"`, "test_value", false},
		{"int", `42`, 42, false},
		{"float", `4.5`, 4.5, false},
		{"bool", `true`, true, false},
		{"null", `null`, nil, false},
		{"list", `["apple", "banana", "cherry"]`, []any{"apple", "banana", "cherry"}, false},
		{"nested numbers", `{"n": [1, 2.5]}`, map[string]any{"n": []any{1, 2.5}}, false},
		{"invalid", `{`, nil, true},
		{"trailing", `1 2`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeJSONLiteral(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItems(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Items(nil))
	assert.Nil(t, Items(5))
	assert.Equal(t, []any{"a", "b"}, Items("ab"))
	assert.Equal(t, []any{1, 2}, Items([]int{1, 2}))
	assert.Equal(t, []any{"a", "b"}, Items(map[string]int{"b": 1, "a": 2}))
}
