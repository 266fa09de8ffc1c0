package plugin

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

var (
	funcResultRe = regexp.MustCompile(`^(.*?)\s*=>\s*(.+)$`)
	funcCallRe   = regexp.MustCompile(`([A-Za-z_][\w\.]*)\(\s*(.*?)\s*\)`)
	identRe      = regexp.MustCompile(`^[A-Za-z_]\w*`)
)

// FuncPlugin evaluates `func` effects of the form `call(args) [=> result]`.
//
// The expression sees only the model's globals (names bound by imports) plus
// the context variables named in the call arguments. Evaluation failures are
// recorded as import errors and do not abort execution.
type FuncPlugin struct{}

func (FuncPlugin) IsMatch(token string) bool { return token == "func" }

func (FuncPlugin) Handle(_ context.Context, operand string, m *execmodel.Model) error {
	method, result := parseFuncOperand(operand)
	if method == "" {
		return errors.Mark(
			errors.Newf("malformed func effect %q", operand),
			spec.ErrUnsupportedSyntax,
		)
	}

	vars := m.Context()
	params := map[string]any{}
	env := maps.Clone(m.Globals())
	if env == nil {
		env = map[string]any{}
	}
	for _, key := range callArgs(method) {
		v, ok := vars.GetVariableValue(key)
		if ok {
			params[key] = v
		}
		root := identRe.FindString(key)
		if root == "" {
			continue
		}
		if root == key {
			if ok {
				env[key] = v
			}
			continue
		}
		if _, bound := env[root]; bound {
			continue
		}
		if rv, found := vars.GetVariableValue(root); found {
			env[root] = rv
		}
	}

	call := m.AddFunctionCallLog(method, params)

	out, err := evalExpr(method, env)
	if err != nil {
		m.AddImportError(fmt.Sprintf("Error calling function '%s': %v", method, err))
		return nil
	}
	call.Result = out
	if result != "" {
		vars.SetVariable(result, out)
	}
	return nil
}

func parseFuncOperand(operand string) (method, result string) {
	operand = strings.TrimSpace(operand)
	if mm := funcResultRe.FindStringSubmatch(operand); mm != nil {
		return strings.TrimSpace(mm[1]), strings.TrimSpace(mm[2])
	}
	return operand, ""
}

// callArgs returns the whitespace-stripped arguments of the first call in method.
func callArgs(method string) []string {
	mm := funcCallRe.FindStringSubmatch(method)
	if mm == nil || mm[2] == "" {
		return nil
	}
	var out []string
	for p := range strings.SplitSeq(mm[2], ",") {
		key := strings.Join(strings.Fields(p), "")
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

func evalExpr(src string, env map[string]any) (any, error) {
	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}
