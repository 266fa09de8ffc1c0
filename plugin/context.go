package plugin

import (
	"context"
	"strings"

	"github.com/flexigpt/lime-go/execmodel"
)

// ContextPlugin handles `context clear`, which empties the window.
type ContextPlugin struct{}

func (ContextPlugin) IsMatch(token string) bool { return token == "context" }

func (ContextPlugin) Handle(_ context.Context, operand string, m *execmodel.Model) error {
	if strings.EqualFold(strings.TrimSpace(operand), "clear") {
		m.Context().Clear()
	}
	return nil
}
