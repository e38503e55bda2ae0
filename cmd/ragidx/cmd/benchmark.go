package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/output"
	"github.com/ragidx/ragidx/internal/telemetry"
	"github.com/ragidx/ragidx/internal/watcher"
)

func newBenchmarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure indexing, search, and watch performance",
	}

	cmd.AddCommand(newBenchmarkIndexingCmd())
	cmd.AddCommand(newBenchmarkSearchCmd())
	cmd.AddCommand(newBenchmarkWatchPerfCmd())

	return cmd
}

func newBenchmarkIndexingCmd() *cobra.Command {
	var glob string

	cmd := &cobra.Command{
		Use:   "indexing [path]",
		Short: "Time a full index run and report chunks/sec",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runBenchmarkIndexing(cmd, path, glob)
		},
	}

	cmd.Flags().StringVar(&glob, "glob", "", "Restrict indexing to files matching this glob")

	return cmd
}

func runBenchmarkIndexing(cmd *cobra.Command, path, glob string) error {
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

	if err := collection.Reset(ctx); err != nil {
		return fmt.Errorf("reset collection before benchmark: %w", err)
	}

	start := time.Now()
	if err := idx.IndexDirectory(ctx, path, glob); err != nil {
		return fmt.Errorf("index directory: %w", err)
	}
	elapsed := time.Since(start)

	status, err := idx.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	var chunksPerSec float64
	if elapsed > 0 {
		chunksPerSec = float64(status.ChunkCount) / elapsed.Seconds()
	}

	out.Statusf("", "Indexed %d chunks across %d sources in %s", status.ChunkCount, status.DistinctSources, elapsed.Round(time.Millisecond))
	out.Statusf("", "Throughput: %.1f chunks/sec", chunksPerSec)

	return nil
}

func newBenchmarkSearchCmd() *cobra.Command {
	var queriesFile string
	var limit int

	cmd := &cobra.Command{
		Use:   "search [queries...]",
		Short: "Run a batch of queries and report latency distribution",
		Long: `search runs each query (from arguments or --queries-file, one per line)
against the current index, recording latency through the same query-metrics
machinery the MCP and CLI search paths feed, then prints the resulting
latency histogram and zero-result rate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := loadBenchmarkQueries(args, queriesFile)
			if err != nil {
				return err
			}
			return runBenchmarkSearch(cmd, queries, limit)
		},
	}

	cmd.Flags().StringVar(&queriesFile, "queries-file", "", "File of newline-separated queries to run")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Results requested per query")

	return cmd
}

func loadBenchmarkQueries(args []string, queriesFile string) ([]string, error) {
	queries := append([]string{}, args...)

	if queriesFile != "" {
		data, err := os.ReadFile(queriesFile)
		if err != nil {
			return nil, fmt.Errorf("read queries file: %w", err)
		}
		for _, line := range splitLines(string(data)) {
			if line != "" {
				queries = append(queries, line)
			}
		}
	}

	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries given: pass arguments or --queries-file")
	}

	return queries, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func runBenchmarkSearch(cmd *cobra.Command, queries []string, limit int) error {
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

	metrics := telemetry.NewQueryMetrics(nil)
	defer func() { _ = metrics.Close() }()

	for _, q := range queries {
		start := time.Now()
		hits, err := idx.Search(ctx, q, index.SearchOptions{NResults: limit})
		elapsed := time.Since(start)
		if err != nil {
			out.Warningf("query %q failed: %v", q, err)
			continue
		}

		metrics.Record(telemetry.QueryEvent{
			Query:       q,
			QueryType:   telemetry.QueryTypeMixed,
			ResultCount: len(hits),
			Latency:     elapsed,
			Timestamp:   time.Now(),
		})
	}

	snap := metrics.Snapshot()
	out.Statusf("", "Ran %d queries (%d zero-result, %.1f%%)", snap.TotalQueries, snap.ZeroResultCount, snap.ZeroResultPercentage())
	out.Status("", "Latency distribution:")
	for _, bucket := range []telemetry.LatencyBucket{
		telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100, telemetry.BucketP500, telemetry.BucketP1000,
	} {
		out.Statusf("", "  %-6s %d", bucket, snap.LatencyDistribution[bucket])
	}

	return nil
}

func newBenchmarkWatchPerfCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch-perf [path]",
		Short: "Measure end-to-end latency from file write to searchable update",
		Long: `watch-perf starts the watcher over path, writes a probe file, and times
how long it takes for that file's content to become searchable, exercising
the same debounce/settle configuration 'ragidx watch' uses.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runBenchmarkWatchPerf(cmd, path, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Maximum time to wait for the probe file to become searchable")

	return cmd
}

func runBenchmarkWatchPerf(cmd *cobra.Command, path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

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

	chunker, err := buildChunker(cfg)
	if err != nil {
		return err
	}

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

	probe := filepath.Join(path, ".ragidx-benchmark-probe.txt")
	marker := fmt.Sprintf("benchmark probe %d", time.Now().UnixNano())
	if err := os.WriteFile(probe, []byte(marker), 0o644); err != nil {
		return fmt.Errorf("write probe file: %w", err)
	}
	defer os.Remove(probe)

	start := time.Now()
	parser := chunk.NewParser()
	extractor := chunk.NewSymbolExtractor()
	gitignoreContent := readGitignoreContent(w.RootPath())

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for probe file to become searchable")
		case batch, ok := <-w.Events():
			if !ok {
				return fmt.Errorf("watcher events channel closed before probe was observed")
			}
			applyWatchEvents(ctx, idx, chunker, parser, extractor, cfg.Watcher.MaxRetries, w.RootPath(), batch, out, &gitignoreContent)

			for _, ev := range batch {
				if filepath.Base(ev.Path) == filepath.Base(probe) {
					elapsed := time.Since(start)
					out.Statusf("", "Probe file indexed after %s", elapsed.Round(time.Millisecond))
					return nil
				}
			}
		}
	}
}
