package lime

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/flexigpt/lime-go/plugin"
	"github.com/flexigpt/lime-go/spec"
)

// DefaultMaxIncludeDepth bounds nested includes unless overridden.
const DefaultMaxIncludeDepth = 64

type Option func(*Runtime) error

func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) error {
		r.logger = l
		return nil
	}
}

// WithParser replaces the default mgx parser.
func WithParser(p spec.Parser) Option {
	return func(r *Runtime) error {
		if p == nil {
			return errors.Wrap(spec.ErrInvalidArgument, "nil parser")
		}
		r.parser = p
		return nil
	}
}

// WithPlugins replaces the default plugin set. Plugins are tried in the given order.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(r *Runtime) error {
		r.plugins = append(r.plugins, plugins...)
		r.customPlugins = true
		return nil
	}
}

// WithQueryService enables the default run plugin. Ignored when WithPlugins is used.
func WithQueryService(q plugin.QueryService) Option {
	return func(r *Runtime) error {
		r.query = q
		return nil
	}
}

// WithImporter replaces the default importer and its module catalog.
func WithImporter(im *plugin.Importer) Option {
	return func(r *Runtime) error {
		if im == nil {
			return errors.Wrap(spec.ErrInvalidArgument, "nil importer")
		}
		r.importer = im
		return nil
	}
}

// WithPromptIntegrity gates every include through pi.
func WithPromptIntegrity(pi spec.PromptIntegrity) Option {
	return func(r *Runtime) error {
		r.integrity = pi
		return nil
	}
}

// WithAllowUnverified lets includes outside the trusted root through with a warning.
// Hash mismatches on tracked files are never downgraded.
func WithAllowUnverified(allow bool) Option {
	return func(r *Runtime) error {
		r.allowUnverified = allow
		return nil
	}
}

// WithMaxIncludeDepth bounds include nesting. Zero disables the limit.
func WithMaxIncludeDepth(n int) Option {
	return func(r *Runtime) error {
		if n < 0 {
			return errors.Wrapf(spec.ErrInvalidArgument, "max include depth must be >= 0, got %d", n)
		}
		r.maxIncludeDepth = n
		return nil
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(r *Runtime) error {
		r.sessions.SetTTL(ttl)
		return nil
	}
}

func WithMaxSessions(maxSessions int) Option {
	return func(r *Runtime) error {
		r.sessions.SetMaxSessions(maxSessions)
		return nil
	}
}
