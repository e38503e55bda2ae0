package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/output"
	"github.com/ragidx/ragidx/internal/telemetry"
)

type searchOptions struct {
	limit       int
	format      string // "text", "json"
	pathGlobs   []string
	groupChunks bool
	explain     bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed directory",
		Long: `Search combines the collection's vector similarity with an optional
BM25 rescoring pass, then groups hits by source document.

Examples:
  ragidx search "authentication middleware"
  ragidx search "handleRequest" --limit 5 --path '*.go'
  ragidx search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVar(&opts.pathGlobs, "path", nil, "Restrict results to paths matching this glob (repeatable)")
	cmd.Flags().BoolVar(&opts.groupChunks, "group", true, "Group results by source document")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Include per-result scoring factors")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
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

	metrics, err := buildQueryMetrics(collection, 0)
	if err != nil {
		return fmt.Errorf("build query metrics: %w", err)
	}
	defer func() { _ = metrics.Close() }()

	start := time.Now()
	hits, err := idx.Search(ctx, query, index.SearchOptions{
		NResults:    opts.limit,
		PathFilters: opts.pathGlobs,
		GroupChunks: opts.groupChunks,
		Explain:     opts.explain,
	})
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	queryType := telemetry.QueryTypeSemantic
	if cfg.Search.BM25Weight > 0 {
		queryType = telemetry.QueryTypeMixed
	}
	metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   queryType,
		ResultCount: len(hits),
		Latency:     latency,
		Timestamp:   start,
	})

	// Best-effort: a query embedding is nice-to-have for near-duplicate
	// detection, but never worth failing or slowing the search over.
	if qv, embErr := embedder.Embed(ctx, query); embErr == nil {
		metrics.RecordQueryEmbedding(qv)
	}

	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	switch opts.format {
	case "json":
		return formatSearchJSON(cmd, hits)
	default:
		return formatSearchText(out, query, hits)
	}
}

func formatSearchText(out *output.Writer, query string, hits []index.SearchHit) error {
	out.Statusf("", "Found %d results for %q:", len(hits), query)
	out.Newline()

	for i, h := range hits {
		source, _ := h.Chunk.Metadata[chunk.MetaSource].(string)
		out.Statusf("", "%d. %s (distance: %.4f)", i+1, source, h.Distance)
		for _, line := range snippet(h.Chunk.Content, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}

	return nil
}

func formatSearchJSON(cmd *cobra.Command, hits []index.SearchHit) error {
	type jsonHit struct {
		Source   string  `json:"source"`
		Content  string  `json:"content"`
		Distance float32 `json:"distance"`
		Score    float64 `json:"score,omitempty"`
	}

	results := make([]jsonHit, 0, len(hits))
	for _, h := range hits {
		source, _ := h.Chunk.Metadata[chunk.MetaSource].(string)
		results = append(results, jsonHit{
			Source:   source,
			Content:  h.Chunk.Content,
			Distance: h.Distance,
			Score:    h.Score,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// snippet returns the first n non-trailing-blank lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
