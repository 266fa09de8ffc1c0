package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flexigpt/lime-go"
	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/fsintegrity"
	"github.com/flexigpt/lime-go/internal/config"
	"github.com/flexigpt/lime-go/internal/promptxml"
	"github.com/flexigpt/lime-go/spec"
)

type executeOptions struct {
	fileName        string
	allowUnverified bool
	noIntegrity     bool
}

func newExecuteCmd(a *app) *cobra.Command {
	var o executeOptions
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a .mgx prompt file",
		Long: `Execute a .mgx prompt file. Includes are verified against the prompt
lock whenever the configured manifest exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVarP(&o.fileName, "file-name", "f", "", "path to the .mgx file")
	cmd.Flags().BoolVar(&o.allowUnverified, "allow-unverified", false, "allow includes outside the trusted prompt root")
	cmd.Flags().BoolVar(&o.noIntegrity, "no-integrity", false, "skip prompt integrity checks")
	_ = cmd.MarkFlagRequired("file-name")
	return cmd
}

func (a *app) execute(ctx context.Context, o executeOptions) error {
	if written, err := config.WriteDefault(a.configPath); err != nil {
		a.logger.Warn("could not create settings file", zap.String("path", a.configPath), zap.Error(err))
	} else if written {
		a.logger.Info("created settings file", zap.String("path", a.configPath))
	}

	opts := []lime.Option{
		lime.WithLogger(a.logger),
		lime.WithMaxIncludeDepth(a.settings.MaxIncludeDepth),
		lime.WithAllowUnverified(o.allowUnverified || a.settings.AllowUnverified),
		lime.WithQueryService(newStdoutQuery(a.stdout)),
	}
	if !o.noIntegrity {
		svc, err := a.integrity(false)
		if err != nil {
			return err
		}
		if svc != nil {
			if err := svc.LoadPolicy(ctx, svc.ManifestPath(), svc.LockPath()); err != nil {
				return err
			}
			opts = append(opts, lime.WithPromptIntegrity(svc))
		}
	}

	rt, err := lime.New(opts...)
	if err != nil {
		return err
	}
	m, err := rt.RunFile(ctx, o.fileName)
	if err != nil {
		return err
	}
	if a.settings.ShowContext {
		fmt.Fprint(a.stdout, m.Context().Window())
	}
	return nil
}

// integrity builds the filesystem integrity service for the configured
// manifest and lock. Unless required, a missing manifest yields nil.
func (a *app) integrity(required bool) (*fsintegrity.Service, error) {
	manifest, lock := a.promptPaths()
	if !required {
		if _, err := os.Stat(manifest); errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("prompt manifest not found, integrity checks disabled", zap.String("manifest", manifest))
			return nil, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "stat %s", manifest)
		}
	}
	return fsintegrity.New(
		fsintegrity.WithLogger(a.logger),
		fsintegrity.WithManifestPath(manifest),
		fsintegrity.WithLockPath(lock),
	)
}

// stdoutQuery stands in for an agent: each run prints the accumulated
// window and declared tools as XML and completes immediately.
type stdoutQuery struct {
	out io.Writer
	now func() time.Time
}

func newStdoutQuery(out io.Writer) *stdoutQuery {
	return &stdoutQuery{out: out, now: time.Now}
}

func (q *stdoutQuery) ExecuteQuery(ctx context.Context, m *execmodel.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	window := m.Context().Window()
	run := m.StartRun(window, "stdout", spec.RunStatusRunning, q.now())

	prompt, err := promptxml.PromptXML(run.TurnID, window)
	if err != nil {
		run.Status = spec.RunStatusError
		run.Errors = append(run.Errors, spec.RunError{Message: err.Error()})
		return err
	}
	fmt.Fprintln(q.out, prompt)

	if tools := m.Context().Tools(); len(tools) > 0 {
		x, err := promptxml.AvailableToolsXML(tools)
		if err != nil {
			run.Status = spec.RunStatusError
			run.Errors = append(run.Errors, spec.RunError{Message: err.Error()})
			return err
		}
		fmt.Fprintln(q.out, x)
	}

	end := q.now()
	run.EndTime = &end
	run.Status = spec.RunStatusCompleted
	return nil
}
