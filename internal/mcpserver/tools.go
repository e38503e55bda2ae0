package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/telemetry"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"the search query to execute"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	PathGlobs  []string `json:"path_globs,omitempty" jsonschema:"glob patterns to restrict results to, e.g. '*.go'"`
	GroupChunks bool    `json:"group_chunks,omitempty" jsonschema:"group results by source document, keeping the best chunk per source"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResult `json:"results" jsonschema:"list of matching chunks, best first"`
}

// SearchResult is one entry of SearchOutput.
type SearchResult struct {
	Source     string  `json:"source" jsonschema:"path of the source document, relative to the indexed root when known"`
	Content    string  `json:"content" jsonschema:"matched chunk content"`
	Distance   float32 `json:"distance" jsonschema:"cosine distance between the query and this chunk, lower is closer"`
	ChunkIndex int     `json:"chunk_index,omitempty" jsonschema:"position of this chunk within its source document"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	StorageKind        string         `json:"storage_kind" jsonschema:"backing store: hnsw or memory"`
	ChunkCount         int            `json:"chunk_count" jsonschema:"total number of indexed chunks"`
	DistinctSources    int            `json:"distinct_sources" jsonschema:"number of distinct source documents"`
	ExtensionHistogram map[string]int `json:"extension_histogram,omitempty" jsonschema:"chunk counts by file extension"`
	ChunkSize          int            `json:"chunk_size" jsonschema:"configured chunk size in tokens"`
	ChunkOverlap       int            `json:"chunk_overlap" jsonschema:"configured chunk overlap in tokens"`
	EmbeddingModel     string         `json:"embedding_model" jsonschema:"name of the embedding model the index was built with"`
}

// searchHandler is the MCP SDK handler for the search tool.
func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	start := time.Now()
	hits, err := s.idx.Search(ctx, input.Query, index.SearchOptions{
		NResults:    limit,
		PathFilters: input.PathGlobs,
		GroupChunks: input.GroupChunks,
	})
	latency := time.Since(start)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	queryType := telemetry.QueryTypeSemantic
	if s.config.Search.BM25Weight > 0 {
		queryType = telemetry.QueryTypeMixed
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       input.Query,
		QueryType:   queryType,
		ResultCount: len(hits),
		Latency:     latency,
		Timestamp:   start,
	})

	output := SearchOutput{Results: make([]SearchResult, 0, len(hits))}
	for _, h := range hits {
		source, _ := h.Chunk.Metadata[chunk.MetaSource].(string)
		chunkIdx, _ := h.Chunk.Metadata[chunk.MetaChunkIndex].(int)
		if f, ok := h.Chunk.Metadata[chunk.MetaChunkIndex].(float64); ok { // metadata decoded from JSON
			chunkIdx = int(f)
		}
		output.Results = append(output.Results, SearchResult{
			Source:     s.relPath(source),
			Content:    h.Chunk.Content,
			Distance:   h.Distance,
			ChunkIndex: chunkIdx,
		})
	}

	return nil, output, nil
}

// statusHandler is the MCP SDK handler for the status tool.
func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	st, err := s.idx.GetStatus(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}

	return nil, StatusOutput{
		StorageKind:        st.StorageKind,
		ChunkCount:         st.ChunkCount,
		DistinctSources:    st.DistinctSources,
		ExtensionHistogram: st.ExtensionHistogram,
		ChunkSize:          st.ChunkSize,
		ChunkOverlap:       st.ChunkOverlap,
		EmbeddingModel:     st.EmbeddingModel,
	}, nil
}
