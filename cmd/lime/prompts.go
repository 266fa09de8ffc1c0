package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/flexigpt/lime-go/fsintegrity"
	"github.com/flexigpt/lime-go/spec"
)

func newPromptsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage prompt integrity manifests and lock files",
	}
	cmd.AddCommand(newPromptsInitCmd(a), newPromptsLockCmd(a), newPromptsCheckCmd(a))
	return cmd
}

func newPromptsInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default prompts.toml manifest",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			manifest, _ := a.promptPaths()
			if _, err := os.Stat(manifest); err == nil && !force {
				return errors.Newf("Manifest '%s' already exists. Use --force to overwrite it.", manifest)
			}
			if err := os.WriteFile(manifest, []byte(spec.DefaultPromptManifestContent), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", manifest)
			}
			fmt.Fprintf(a.stdout, "Created '%s'.\n", manifest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing manifest")
	return cmd
}

func newPromptsLockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Generate the prompt lock from the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.integrity(true)
			if err != nil {
				return err
			}
			lock, err := svc.ScanAndLock(cmd.Context())
			if err != nil {
				return err
			}
			_, lockPath := a.promptPaths()
			fmt.Fprintf(a.stdout, "Generated '%s' with %d tracked prompt files.\n", lockPath, len(lock.Files))
			return nil
		},
	}
}

func newPromptsCheckCmd(a *app) *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify prompt files against the lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.integrity(true)
			if err != nil {
				return err
			}
			if err := a.checkPrompts(cmd.Context(), svc); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			w := fsintegrity.NewWatcher(svc, a.reportCheck,
				fsintegrity.WithDebounce(debounce),
				fsintegrity.WithWatcherLogger(a.logger))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-check whenever prompts, the manifest or the lock change")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "delay before re-checking after a change")
	return cmd
}

func (a *app) checkPrompts(ctx context.Context, svc *fsintegrity.Service) error {
	if err := svc.LoadPolicy(ctx, svc.ManifestPath(), svc.LockPath()); err != nil {
		return err
	}
	if err := svc.CheckAgainstLock(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Prompt integrity check passed.")
	return nil
}

func (a *app) reportCheck(err error) {
	if err != nil {
		printError(a.stderr, err)
		return
	}
	fmt.Fprintln(a.stdout, "Prompt integrity check passed.")
}
