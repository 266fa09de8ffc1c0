package main

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flexigpt/lime-go/internal/config"
	"github.com/flexigpt/lime-go/internal/logger"
)

// app carries the per-invocation state shared by subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	manifest   string
	lock       string
	verbose    int

	settings *config.Settings
	logger   *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "lime",
		Short: "Execute .mgx prompt files and manage prompt integrity",
		Long: `lime runs .mgx prompt orchestration files and keeps included
prompt templates pinned to a manifest and lock.

Examples:
  lime prompts init            # Create prompts.toml
  lime prompts lock            # Hash tracked prompts into prompts.lock.json
  lime execute -f agent.mgx    # Execute a prompt file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "settings file (default $LIME_CONFIG or ~/.lime/settings.toml)")
	pf.StringVar(&a.manifest, "manifest", "", "prompt manifest path (overrides prompts.manifest)")
	pf.StringVar(&a.lock, "lock", "", "prompt lock path (overrides prompts.lock)")
	pf.CountVarP(&a.verbose, "verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	root.AddCommand(newExecuteCmd(a), newPromptsCmd(a), newVersionCmd(a))
	return root
}

func (a *app) setup() error {
	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	s, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	l, err := logger.New(logger.Options{
		JSON:      s.Log.JSON,
		Level:     s.Log.Level,
		Verbosity: a.verbose,
		Output:    a.stderr,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	a.settings, a.logger = s, l
	return nil
}

// promptPaths returns the manifest and lock, flags taking precedence over settings.
func (a *app) promptPaths() (manifest, lock string) {
	manifest, lock = a.settings.Prompts.Manifest, a.settings.Prompts.Lock
	if a.manifest != "" {
		manifest = a.manifest
	}
	if a.lock != "" {
		lock = a.lock
	}
	return manifest, lock
}
