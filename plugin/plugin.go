// Package plugin implements effect dispatch for the interpreter.
//
// An effect line `@effect <token> <operand>` is split into its token and operand
// and handed to the first registered Plugin whose IsMatch accepts the token.
// Unmatched tokens are ignored.
package plugin

import (
	"context"
	"strings"
	"unicode"

	"github.com/flexigpt/lime-go/execmodel"
)

// Plugin handles one family of effects.
type Plugin interface {
	IsMatch(token string) bool
	Handle(ctx context.Context, operand string, m *execmodel.Model) error
}

// Dispatcher routes effects to plugins in registration order.
type Dispatcher struct {
	plugins []Plugin
}

func NewDispatcher(plugins ...Plugin) *Dispatcher {
	d := &Dispatcher{}
	for _, p := range plugins {
		d.Register(p)
	}
	return d
}

// Register appends p; nil plugins are ignored.
func (d *Dispatcher) Register(p Plugin) {
	if p == nil {
		return
	}
	d.plugins = append(d.plugins, p)
}

func (d *Dispatcher) Len() int { return len(d.plugins) }

// Dispatch splits content and invokes the first matching plugin.
// It reports whether any plugin matched.
func (d *Dispatcher) Dispatch(ctx context.Context, content string, m *execmodel.Model) (bool, error) {
	token, operand := SplitEffect(content)
	if token == "" {
		return false, nil
	}
	for _, p := range d.plugins {
		if !p.IsMatch(token) {
			continue
		}
		return true, p.Handle(ctx, operand, m)
	}
	return false, nil
}

// SplitEffect splits content on its first whitespace run.
func SplitEffect(content string) (token, operand string) {
	content = strings.TrimSpace(content)
	i := strings.IndexFunc(content, unicode.IsSpace)
	if i < 0 {
		return content, ""
	}
	return content[:i], strings.TrimLeftFunc(content[i:], unicode.IsSpace)
}

// Defaults returns the reference plugin set: run, func, context and tools.
// The run plugin is omitted when q is nil.
func Defaults(q QueryService) []Plugin {
	var out []Plugin
	if q != nil {
		out = append(out, &RunPlugin{Query: q})
	}
	return append(out, FuncPlugin{}, ContextPlugin{}, ToolsPlugin{})
}
