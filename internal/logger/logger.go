// Package logger builds the zap loggers used by the lime CLI.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// JSON selects structured production output; otherwise a console encoder is used.
	JSON bool
	// Level is a zap level name ("debug", "info", "warn", "error"). Empty means "info".
	Level string
	// Verbosity raises the level per -v flag: 1 info, 2 or more debug.
	Verbosity int
	// Output defaults to stderr so the context window on stdout stays clean.
	Output io.Writer
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(n)); err != nil {
		return 0, errors.Wrapf(err, "unknown log level %q", name)
	}
	return lvl, nil
}

// VerbosityToLevel maps -v flag counts onto zap levels; zero keeps the base level.
func VerbosityToLevel(base zapcore.Level, verbosity int) zapcore.Level {
	switch {
	case verbosity >= 2:
		return zapcore.DebugLevel
	case verbosity == 1 && base > zapcore.InfoLevel:
		return zapcore.InfoLevel
	default:
		return base
	}
}

func New(opts Options) (*zap.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	lvl = VerbosityToLevel(lvl, opts.Verbosity)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		cfg.CallerKey = ""
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(out), lvl)), nil
}
