package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/async"
	"github.com/ragidx/ragidx/internal/output"
)

func newIndexCmd() *cobra.Command {
	var glob string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory, creating or updating the local index",
		Long: `Index walks path (default: project root), chunks and embeds every
non-excluded file, and stores the result in .ragidx/.

Already-indexed files whose modification time hasn't advanced since the
last run are skipped; ragidx index is safe to re-run after edits.

Examples:
  ragidx index
  ragidx index ./services/api
  ragidx index --glob '**/*.go'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd, path, glob)
		},
	}

	cmd.Flags().StringVar(&glob, "glob", "", "Restrict indexing to files matching this glob")

	return cmd
}

func runIndex(cmd *cobra.Command, path, glob string) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	cfg := loadConfig(root)

	idx, collection, embedder, err := buildIndexer(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer closeIndexerDeps(ctx, collection, embedder)

	dataDir := filepath.Join(root, dataDirName)
	if async.HasIncompleteLock(dataDir) {
		out.Warning("previous index run didn't finish cleanly; re-syncing from where it left off")
	}

	out.Status("", fmt.Sprintf("Indexing %s ...", path))
	slog.Info("index_started", slog.String("path", path), slog.String("glob", glob))

	bg := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: dataDir})
	bg.IndexFunc = func(ctx context.Context, progress *async.IndexProgress) error {
		progress.SetStage(async.StageIndexing, 0)
		return idx.IndexDirectory(ctx, path, glob)
	}
	bg.Start(ctx)
	if err := bg.Wait(); err != nil {
		return fmt.Errorf("index directory: %w", err)
	}

	status, err := idx.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	out.Successf("Indexed %d chunks across %d sources", status.ChunkCount, status.DistinctSources)
	slog.Info("index_complete", slog.Int("chunks", status.ChunkCount), slog.Int("sources", status.DistinctSources))

	return nil
}
