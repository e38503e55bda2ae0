package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/embed"
	"github.com/ragidx/ragidx/internal/lifecycle"
	"github.com/ragidx/ragidx/internal/output"
	"github.com/ragidx/ragidx/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check that the environment is ready for indexing",
		Long: `doctor runs the disk space, memory, write-permission, and file
descriptor checks ragidx needs before a long index job, and, when the
configured embedder is Ollama, makes sure it is installed, running, and
has the embedding model pulled.

A passing run is recorded in .ragidx/ so the next doctor run can skip
the checks; pass --force to re-run them anyway.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runDoctor(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-run checks even if a recent pass was recorded")

	return cmd
}

func runDoctor(cmd *cobra.Command, path string, force bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	cfg := loadConfig(root)
	dataDir := filepath.Join(root, dataDirName)

	if !force && !preflight.NeedsCheck(dataDir) {
		out.Successf("Environment checks already passed %s ago (use --force to re-check)", preflight.MarkerAge(dataDir).Round(1))
		return nil
	}

	checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(true))
	results := checker.RunAll(ctx, path)
	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("preflight checks failed, see above")
	}

	if provider := embed.ProviderType(cfg.Embeddings.Provider); provider == embed.ProviderOllama || provider == "" {
		out.Status("", "Checking Ollama...")
		manager := lifecycle.NewOllamaManager()
		if err := manager.EnsureReady(ctx, cfg.Embeddings.Model, lifecycle.DefaultEnsureOpts()); err != nil {
			out.Warningf("Ollama not ready: %v", err)
			out.Status("", lifecycle.InstallInstructions())
		} else {
			out.Success("Ollama is ready")
		}
	}

	if err := preflight.MarkPassed(dataDir); err != nil {
		return fmt.Errorf("record preflight pass: %w", err)
	}

	out.Success("Environment checks passed")
	return nil
}
