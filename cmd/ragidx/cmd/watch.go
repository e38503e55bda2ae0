package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/output"
	"github.com/ragidx/ragidx/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and keep the index current as files change",
		Long: `Watch indexes path once, then applies create/modify/delete events to
the index as they happen, debounced per the watcher config in .ragidx.yaml.
Run with Ctrl-C to stop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runWatch(cmd, path)
		},
	}

	return cmd
}

func runWatch(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg := loadConfig(root)

	lock := watcher.NewFileLock(filepath.Join(root, dataDirName))
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire watch lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another 'ragidx watch' is already running against %s (lock: %s)", root, lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	idx, collection, embedder, err := buildIndexer(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer closeIndexerDeps(ctx, collection, embedder)

	out.Status("", "Performing initial index...")
	if err := idx.IndexDirectory(ctx, path, ""); err != nil {
		return err
	}

	chunker, err := buildChunker(cfg)
	if err != nil {
		return err
	}
	parser := chunk.NewParser()
	extractor := chunk.NewSymbolExtractor()

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: parseDurationOr(cfg.Watcher.DebounceWindow, 1*time.Second),
		PollInterval:   parseDurationOr(cfg.Watcher.PollInterval, 5*time.Second),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	if err := w.Start(ctx, path); err != nil {
		return err
	}

	out.Successf("Watching %s (%s mode)", path, w.WatcherType())

	gitignoreContent := readGitignoreContent(w.RootPath())

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			applyWatchEvents(ctx, idx, chunker, parser, extractor, cfg.Watcher.MaxRetries, w.RootPath(), batch, out, &gitignoreContent)
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func applyWatchEvents(ctx context.Context, idx *index.Indexer, chunker *chunk.DocumentChunker, parser *chunk.Parser, extractor *chunk.SymbolExtractor, maxRetries int, root string, events []watcher.FileEvent, out *output.Writer, gitignoreContent *string) {
	for _, ev := range events {
		absPath := filepath.Join(root, ev.Path)

		switch ev.Operation {
		case watcher.OpDelete:
			if _, err := idx.DeleteDocument(ctx, chunk.BaseID(absPath)); err != nil {
				slog.Warn("watch_delete_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			out.Status("-", ev.Path)

		case watcher.OpCreate, watcher.OpModify:
			if ev.IsDir {
				continue
			}
			chunks, err := chunk.FromFile(absPath, chunker, parser, extractor)
			if err != nil {
				slog.Warn("watch_chunk_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			if _, err := idx.DeleteDocument(ctx, chunk.BaseID(absPath)); err != nil {
				slog.Warn("watch_delete_before_add_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
			}
			if err := idx.AddDocuments(ctx, chunks, 0); err != nil {
				slog.Warn("watch_add_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			if len(chunks) > 0 {
				_, _ = idx.VerifyDocument(ctx, absPath, chunks[0].Content, maxRetries, 100*time.Millisecond)
			}
			out.Status("~", ev.Path)

		case watcher.OpRename:
			if ev.OldPath != "" {
				oldAbsPath := filepath.Join(root, ev.OldPath)
				if _, err := idx.DeleteDocument(ctx, chunk.BaseID(oldAbsPath)); err != nil {
					slog.Warn("watch_rename_delete_failed", slog.String("path", ev.OldPath), slog.String("error", err.Error()))
				}
			}
			if ev.IsDir {
				out.Status("→", ev.Path)
				continue
			}
			chunks, err := chunk.FromFile(absPath, chunker, parser, extractor)
			if err != nil {
				slog.Warn("watch_chunk_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			if err := idx.AddDocuments(ctx, chunks, 0); err != nil {
				slog.Warn("watch_add_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			if len(chunks) > 0 {
				_, _ = idx.VerifyDocument(ctx, absPath, chunks[0].Content, maxRetries, 100*time.Millisecond)
			}
			out.Status("→", ev.Path)

		case watcher.OpGitignoreChange:
			newContent := readGitignoreContent(root)
			removed, added, err := idx.ReconcileGitignore(ctx, root, *gitignoreContent, newContent)
			*gitignoreContent = newContent
			if err != nil {
				slog.Warn("gitignore_reconcile_failed", slog.String("error", err.Error()))
				continue
			}
			for _, source := range removed {
				out.Status("-", source)
			}
			if len(added) > 0 {
				out.Status("~", fmt.Sprintf("%d chunk(s) newly unignored", len(added)))
			}

		case watcher.OpConfigChange:
			slog.Info("watch_reconcile_needed", slog.String("path", ev.Path), slog.String("reason", ev.Operation.String()))
		}
	}
}

// readGitignoreContent reads root's top-level .gitignore, returning "" if
// absent so ReconcileGitignore's diff sees a clean before/after state.
func readGitignoreContent(root string) string {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ""
	}
	return string(data)
}

// parseDurationOr parses s, falling back to def on error or an empty string.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
