// Package execmodel holds the mutable state of one prompt execution: the
// variable namespace and conversational window (Context) and the turn,
// function-call and import-error bookkeeping around it (Model).
package execmodel

import (
	"slices"
	"strings"

	"github.com/flexigpt/lime-go/spec"
)

// Context is the shared interpreter state. It has exactly one writer, the
// active execution, and is not safe for concurrent mutation.
type Context struct {
	variables map[string]any
	window    strings.Builder
	tools     []spec.Tool
}

func NewContext() *Context {
	return &Context{variables: map[string]any{}}
}

// SetVariable binds name to value, overwriting any previous binding.
func (c *Context) SetVariable(name string, value any) {
	c.variables[name] = value
}

// Variables returns a shallow copy of the variable namespace.
func (c *Context) Variables() map[string]any {
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// AddToState binds a loop iterator. It shares the variable namespace, so it
// shadows a persistent variable of the same name until RemoveFromState.
func (c *Context) AddToState(iterator string, item any) {
	c.variables[iterator] = item
}

// RemoveFromState deletes key. A shadowed value is not restored.
func (c *Context) RemoveFromState(key string) {
	delete(c.variables, key)
}

func (c *Context) AddToContextWindow(text string) {
	c.window.WriteString(text)
}

func (c *Context) Window() string { return c.window.String() }

// Clear resets the window. Variables and tools are kept.
func (c *Context) Clear() {
	c.window.Reset()
}

func (c *Context) AddTool(t spec.Tool) {
	c.tools = append(c.tools, t)
}

func (c *Context) Tools() []spec.Tool { return slices.Clone(c.tools) }

func (c *Context) ClearTools() { c.tools = nil }

// GetVariableValue resolves a range form, an index or slice form, or a
// dotted path, in that order. Unresolvable names report ok=false.
func (c *Context) GetVariableValue(name string) (value any, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	if strings.HasPrefix(name, "range(") && strings.HasSuffix(name, ")") {
		return resolveRange(name[len("range(") : len(name)-1])
	}

	if open := strings.LastIndex(name, "["); open > 0 && strings.HasSuffix(name, "]") {
		base, ok := c.GetVariableValue(name[:open])
		if !ok {
			return nil, false
		}
		expr := strings.TrimSpace(name[open+1 : len(name)-1])
		if strings.Contains(expr, ":") {
			return sliceValue(base, expr)
		}
		return indexValue(base, expr)
	}

	return c.resolvePath(strings.Split(name, "."))
}

func (c *Context) resolvePath(parts []string) (any, bool) {
	var cur any = c.variables
	for _, p := range parts {
		next, ok := lookupField(cur, p)
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
