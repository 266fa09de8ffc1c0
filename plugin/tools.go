package plugin

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

var toolSigRe = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*\(\s*(.*?)\s*\)\s*(?:=>\s*(.+))?\s*$`)

// ToolsPlugin registers a tool descriptor from `name(p: type, ...) [=> T1, T2]`.
// Names that are not bound in the model's globals are ignored.
type ToolsPlugin struct{}

func (ToolsPlugin) IsMatch(token string) bool { return token == "tools" }

func (ToolsPlugin) Handle(_ context.Context, operand string, m *execmodel.Model) error {
	mm := toolSigRe.FindStringSubmatch(operand)
	if mm == nil {
		return nil
	}
	name, paramStr, returns := mm[1], mm[2], mm[3]
	if _, ok := m.Globals()[name]; !ok {
		return nil
	}

	tool := spec.Tool{Name: name, Params: []spec.Param{}}
	if paramStr != "" {
		for p := range strings.SplitSeq(paramStr, ",") {
			pname, ptype, ok := strings.Cut(p, ":")
			if !ok {
				return errors.Mark(
					errors.Newf("tool %q parameter %q has no type", name, strings.TrimSpace(p)),
					spec.ErrUnsupportedSyntax,
				)
			}
			tool.Params = append(tool.Params, spec.Param{
				Name: strings.Join(strings.Fields(pname), ""),
				Type: strings.Join(strings.Fields(ptype), ""),
			})
		}
	}
	if returns != "" {
		for r := range strings.SplitSeq(returns, ",") {
			tool.ReturnTypes = append(tool.ReturnTypes, strings.TrimSpace(r))
		}
	}
	m.Context().AddTool(tool)
	return nil
}
