// Package lime executes mgx prompt-orchestration files.
//
// A Runtime parses source text, walks the resulting node tree against an
// execution model (variables, context window, tools, turns) and dispatches
// effects to plugins. Included files can be gated by a spec.PromptIntegrity
// verifier so only locked prompt files are interpreted.
package lime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/flexigpt/llmtools-go"
	llmtoolsgoSpec "github.com/flexigpt/llmtools-go/spec"
	"go.uber.org/zap"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/internal/sessionstore"
	"github.com/flexigpt/lime-go/mgxparser"
	"github.com/flexigpt/lime-go/plugin"
	"github.com/flexigpt/lime-go/spec"
	"github.com/flexigpt/lime-go/statetool"
)

type Runtime struct {
	logger *zap.Logger

	parser     spec.Parser
	importer   *plugin.Importer
	dispatcher *plugin.Dispatcher

	plugins       []plugin.Plugin
	customPlugins bool
	query         plugin.QueryService

	integrity       spec.PromptIntegrity
	allowUnverified bool
	maxIncludeDepth int

	sessions *sessionstore.Store
}

func New(opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		logger:          zap.NewNop(),
		parser:          mgxparser.New(),
		maxIncludeDepth: DefaultMaxIncludeDepth,
		sessions:        sessionstore.New(),
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(rt); err != nil {
			return nil, err
		}
	}
	if rt.logger == nil {
		rt.logger = zap.NewNop()
	}
	if rt.importer == nil {
		im, err := plugin.NewImporter()
		if err != nil {
			return nil, err
		}
		rt.importer = im
	}
	if !rt.customPlugins {
		rt.plugins = plugin.Defaults(rt.query)
	}
	rt.dispatcher = plugin.NewDispatcher(rt.plugins...)
	return rt, nil
}

func (r *Runtime) NewSession(ctx context.Context) (spec.SessionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := r.sessions.NewSession()
	return spec.SessionID(s.ID), nil
}

func (r *Runtime) CloseSession(ctx context.Context, id spec.SessionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(string(id)) == "" {
		return nil
	}
	r.sessions.Delete(string(id))
	return nil
}

// Model returns the execution model owned by a session.
func (r *Runtime) Model(ctx context.Context, id spec.SessionID) (*execmodel.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := r.mustGetSession(id)
	if err != nil {
		return nil, err
	}
	return s.Model, nil
}

// Execute interprets source in the session's model. Relative includes resolve
// against basePath; an empty basePath means the working directory.
// Executions on one session are serialized.
func (r *Runtime) Execute(ctx context.Context, id spec.SessionID, source, basePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := r.mustGetSession(id)
	if err != nil {
		return err
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return r.execute(ctx, s.Model, source, basePath)
}

// ExecuteFile reads path and executes it with includes resolved against its directory.
func (r *Runtime) ExecuteFile(ctx context.Context, id spec.SessionID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source, base, err := readSource(path)
	if err != nil {
		return err
	}
	return r.Execute(ctx, id, source, base)
}

// Run interprets source in a fresh model that is not tracked as a session.
func (r *Runtime) Run(ctx context.Context, source, basePath string) (*execmodel.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := execmodel.New()
	if err := r.execute(ctx, m, source, basePath); err != nil {
		return m, err
	}
	return m, nil
}

// RunFile is Run for a file on disk.
func (r *Runtime) RunFile(ctx context.Context, path string) (*execmodel.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source, base, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, source, base)
}

// NewSessionRegistry returns an llmtools-go registry with the state tools bound to the session.
// Registry calls are not serialized with Execute on the same session.
func (r *Runtime) NewSessionRegistry(
	ctx context.Context,
	id spec.SessionID,
	opts ...llmtools.RegistryOption,
) (*llmtools.Registry, error) {
	m, err := r.Model(ctx, id)
	if err != nil {
		return nil, err
	}
	return statetool.NewStateRegistry(m, opts...)
}

// DeclaredTools converts the tools registered by `tools` effects into llmtools-go specs.
func (r *Runtime) DeclaredTools(ctx context.Context, id spec.SessionID) ([]llmtoolsgoSpec.Tool, error) {
	m, err := r.Model(ctx, id)
	if err != nil {
		return nil, err
	}
	return statetool.ToolSpecs(m.Context().Tools())
}

func (r *Runtime) mustGetSession(id spec.SessionID) (*sessionstore.Session, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, errors.Wrap(spec.ErrInvalidArgument, "session id is required")
	}
	s, ok := r.sessions.Get(string(id))
	if !ok {
		return nil, errors.Wrapf(spec.ErrSessionNotFound, "session %s", id)
	}
	return s, nil
}

func readSource(path string) (source, base string, err error) {
	if strings.TrimSpace(path) == "" {
		return "", "", errors.Wrap(spec.ErrInvalidArgument, "file name is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", errors.Wrapf(err, "resolve %s", path)
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", errors.Mark(errors.Wrapf(err, "prompt file %s", abs), spec.ErrMissingResource)
		}
		return "", "", errors.Wrapf(err, "read %s", abs)
	}
	if !utf8.Valid(b) {
		return "", "", errors.Mark(errors.Newf("prompt file %s is not valid UTF-8", abs), spec.ErrEncoding)
	}
	return string(b), filepath.Dir(abs), nil
}
