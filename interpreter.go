package lime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

var textVarRe = regexp.MustCompile(`\$\{([a-zA-Z_][\w\.]*)\}`)

// interpreter walks one node tree. Includes share its model and base path.
type interpreter struct {
	rt       *Runtime
	model    *execmodel.Model
	basePath string
	depth    int
}

func (r *Runtime) execute(ctx context.Context, m *execmodel.Model, source, basePath string) error {
	base, err := resolveBase(basePath)
	if err != nil {
		return err
	}
	md, nodes, err := r.parser.Parse(source)
	if err != nil {
		return errors.Wrap(err, "parse prompt")
	}

	m.SetMetadata(md)
	turn := m.StartTurn()
	r.logger.Debug("execution started", zap.String("turn", turn.ID), zap.String("base", base))

	in := &interpreter{rt: r, model: m, basePath: base}
	if err := in.processNodes(ctx, nodes); err != nil {
		return err
	}
	r.logger.Debug("execution finished",
		zap.String("turn", turn.ID),
		zap.Int("window_bytes", len(m.Context().Window())),
		zap.Int("import_errors", len(m.ImportErrors())),
	)
	return nil
}

func resolveBase(basePath string) (string, error) {
	if strings.TrimSpace(basePath) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "working directory")
		}
		return wd, nil
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return "", errors.Wrapf(err, "resolve base path %s", basePath)
	}
	return abs, nil
}

func (in *interpreter) processNodes(ctx context.Context, nodes spec.Block) error {
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.processNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (in *interpreter) processNode(ctx context.Context, n spec.Node) error {
	vars := in.model.Context()
	switch node := n.(type) {
	case spec.TextNode:
		vars.AddToContextWindow(in.substitute(node.Content))

	case spec.VariableNode:
		if v, ok := vars.GetVariableValue(node.Name); ok {
			vars.AddToContextWindow(execmodel.Stringify(v))
		}

	case spec.IfNode:
		v, _ := vars.GetVariableValue(node.Condition)
		if execmodel.Truthy(v) {
			return in.processNodes(ctx, node.TrueBlock)
		}
		return in.processNodes(ctx, node.FalseBlock)

	case spec.ForNode:
		v, ok := vars.GetVariableValue(node.Iterable)
		if !ok || !execmodel.Truthy(v) {
			return nil
		}
		items := execmodel.Items(v)
		if items == nil {
			in.rt.logger.Warn("for loop iterable is not a sequence; loop skipped",
				zap.String("iterable", node.Iterable),
				zap.String("type", fmt.Sprintf("%T", v)),
			)
		}
		for _, item := range items {
			vars.AddToState(node.Iterator, item)
			err := in.processNodes(ctx, node.Block)
			vars.RemoveFromState(node.Iterator)
			if err != nil {
				return err
			}
		}

	case spec.StateNode:
		v, err := execmodel.DecodeJSONLiteral(node.InitialValue)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "state %s", node.Name), spec.ErrUnsupportedSyntax)
		}
		vars.SetVariable(node.Name, v)

	case spec.ImportNode:
		if err := in.rt.importer.Import(node.Statement, in.model.Globals()); err != nil {
			msg := "Error executing import statement: " + err.Error()
			in.model.AddImportError(msg)
			in.rt.logger.Warn("import failed", zap.String("statement", node.Statement), zap.Error(err))
		}

	case spec.IncludeNode:
		return in.include(ctx, node.TemplateName)

	case spec.EffectNode:
		matched, err := in.rt.dispatcher.Dispatch(ctx, node.Content, in.model)
		if err != nil {
			return errors.Wrapf(err, "effect %q", node.Content)
		}
		if !matched {
			in.rt.logger.Debug("no plugin matched effect", zap.String("effect", node.Content))
		}

	default:
		return errors.Newf("unsupported node type %T", n)
	}
	return nil
}

// substitute replaces ${name} references with their string form; unresolved names become empty.
func (in *interpreter) substitute(content string) string {
	if !strings.Contains(content, "${") {
		return content
	}
	vars := in.model.Context()
	return textVarRe.ReplaceAllStringFunc(content, func(match string) string {
		name := textVarRe.FindStringSubmatch(match)[1]
		v, ok := vars.GetVariableValue(name)
		if !ok {
			return ""
		}
		return execmodel.Stringify(v)
	})
}

func (in *interpreter) include(ctx context.Context, templateName string) error {
	if limit := in.rt.maxIncludeDepth; limit > 0 && in.depth >= limit {
		return errors.Wrapf(spec.ErrMaxDepth, "including '%s' at depth %d", templateName, in.depth+1)
	}

	name, err := NormalizeIncludePath(templateName)
	if err != nil {
		return err
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(in.basePath, filepath.FromSlash(name))
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return errors.Mark(
			errors.Newf("Included prompt file was not found: '%s'.", path),
			spec.ErrMissingResource,
		)
	}
	in.rt.logger.Debug("including prompt file", zap.String("path", path), zap.Int("depth", in.depth+1))

	verify := in.rt.integrity != nil
	if verify {
		if err := in.rt.integrity.VerifyTrustedPath(ctx, path); err != nil {
			if !in.rt.allowUnverified || !errors.Is(err, spec.ErrUnverifiedPath) {
				return err
			}
			verify = false
			in.rt.logger.Warn(
				"allowing unverified include outside trusted prompt root",
				zap.String("path", path),
				zap.String("reason", err.Error()),
			)
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read include %s", path)
	}
	if verify {
		if err := in.rt.integrity.VerifyBytes(ctx, path, content); err != nil {
			return err
		}
	}
	if !utf8.Valid(content) {
		return errors.Mark(errors.Newf("included prompt file '%s' is not valid UTF-8", path), spec.ErrEncoding)
	}

	_, nodes, err := in.rt.parser.Parse(string(content))
	if err != nil {
		return errors.Wrapf(err, "parse include %s", path)
	}

	in.depth++
	defer func() { in.depth-- }()
	return in.processNodes(ctx, nodes)
}

// NormalizeIncludePath appends ".mg" to extensionless names and rejects
// extensions other than the includable ones.
func NormalizeIncludePath(templateName string) (string, error) {
	name := strings.TrimSpace(templateName)
	if name == "" {
		return "", errors.Mark(errors.New("include name is empty"), spec.ErrUnsupportedSyntax)
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return name + ".mg", nil
	}
	if !slices.Contains(spec.IncludeExtensions, ext) {
		return "", errors.Mark(
			errors.Newf(
				"Unsupported include extension '%s' in '%s'. Only %s are allowed.",
				ext, templateName, strings.Join(spec.IncludeExtensions, " and "),
			),
			spec.ErrUnsupportedSyntax,
		)
	}
	return name, nil
}
