package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/output"
	"github.com/ragidx/ragidx/internal/telemetry"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool
	var queries bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics for the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if queries {
				return runStatusQueries(cmd, asJSON)
			}
			return runStatus(cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&queries, "queries", false, "Show query telemetry (top terms, zero-result queries, latency) instead of index stats")

	return cmd
}

func runStatus(cmd *cobra.Command, asJSON bool) error {
	ctx := cmd.Context()

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

	status, err := idx.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("", fmt.Sprintf("Storage:      %s", status.StorageKind))
	out.Status("", fmt.Sprintf("Chunks:       %d", status.ChunkCount))
	out.Status("", fmt.Sprintf("Sources:      %d", status.DistinctSources))
	out.Status("", fmt.Sprintf("Chunk size:   %d tokens (overlap %d)", status.ChunkSize, status.ChunkOverlap))
	out.Status("", fmt.Sprintf("Embed model:  %s", status.EmbeddingModel))
	if status.VectorOrphans != nil && *status.VectorOrphans > 0 {
		out.Status("", fmt.Sprintf("Orphans:      %d (lazy-deleted, still held in the vector graph)", *status.VectorOrphans))
	}

	if len(status.ExtensionHistogram) > 0 {
		out.Newline()
		out.Status("", "By extension:")
		exts := make([]string, 0, len(status.ExtensionHistogram))
		for ext := range status.ExtensionHistogram {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			out.Status("", fmt.Sprintf("  %-10s %d", ext, status.ExtensionHistogram[ext]))
		}
	}

	return nil
}

// queryStatusReport is the `status --queries --json` shape: the persisted
// (cross-session) counterpart to the in-memory telemetry.QueryMetricsSnapshot
// a single `search` invocation never lives long enough to accumulate.
type queryStatusReport struct {
	QueryTypeCounts   map[telemetry.QueryType]int64    `json:"query_type_counts"`
	TopTerms          []telemetry.TermCount            `json:"top_terms"`
	ZeroResultQueries []string                         `json:"zero_result_queries"`
	LatencyCounts     map[telemetry.LatencyBucket]int64 `json:"latency_counts"`
}

// allTimeRange brackets GetQueryTypeCounts/GetLatencyCounts's date filter
// wide enough to cover every date a "YYYY-MM-DD" flush could ever write.
const (
	allTimeFrom = "0000-01-01"
	allTimeTo   = "9999-12-31"
)

func runStatusQueries(cmd *cobra.Command, asJSON bool) error {
	ctx := cmd.Context()

	root, err := projectRoot()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	cfg := loadConfig(root)

	_, collection, embedder, err := buildIndexer(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer closeIndexerDeps(ctx, collection, embedder)

	if err := telemetry.InitTelemetrySchema(collection.DB()); err != nil {
		return fmt.Errorf("init telemetry schema: %w", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(collection.DB())
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}

	typeCounts, err := metricsStore.GetQueryTypeCounts(allTimeFrom, allTimeTo)
	if err != nil {
		return fmt.Errorf("get query type counts: %w", err)
	}
	topTerms, err := metricsStore.GetTopTerms(20)
	if err != nil {
		return fmt.Errorf("get top terms: %w", err)
	}
	zeroResults, err := metricsStore.GetZeroResultQueries(20)
	if err != nil {
		return fmt.Errorf("get zero-result queries: %w", err)
	}
	latencyCounts, err := metricsStore.GetLatencyCounts(allTimeFrom, allTimeTo)
	if err != nil {
		return fmt.Errorf("get latency counts: %w", err)
	}

	report := queryStatusReport{
		QueryTypeCounts:   typeCounts,
		TopTerms:          topTerms,
		ZeroResultQueries: zeroResults,
		LatencyCounts:     latencyCounts,
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.New(cmd.OutOrStdout())

	var total int64
	for _, n := range typeCounts {
		total += n
	}
	if total == 0 {
		out.Status("", "No query telemetry recorded yet")
		return nil
	}

	out.Status("", "Query types:")
	for _, qt := range []telemetry.QueryType{telemetry.QueryTypeLexical, telemetry.QueryTypeSemantic, telemetry.QueryTypeMixed} {
		if n := typeCounts[qt]; n > 0 {
			out.Status("", fmt.Sprintf("  %-10s %d", qt, n))
		}
	}

	if len(topTerms) > 0 {
		out.Newline()
		out.Status("", "Top terms:")
		for _, tc := range topTerms {
			out.Status("", fmt.Sprintf("  %-20s %d", tc.Term, tc.Count))
		}
	}

	if len(latencyCounts) > 0 {
		out.Newline()
		out.Status("", "Latency distribution:")
		for _, bucket := range []telemetry.LatencyBucket{
			telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100, telemetry.BucketP500, telemetry.BucketP1000,
		} {
			if n := latencyCounts[bucket]; n > 0 {
				out.Status("", fmt.Sprintf("  %-6s %d", bucket, n))
			}
		}
	}

	if len(zeroResults) > 0 {
		out.Newline()
		out.Status("", fmt.Sprintf("Recent zero-result queries (%d):", len(zeroResults)))
		for _, q := range zeroResults {
			out.Status("", "  "+q)
		}
	}

	return nil
}
