package mcpserver

import (
	"context"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/store"
)

// fakeEmbedder is a deterministic, hash-seeded embedder: identical text
// always produces an identical vector, without requiring a real model.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, f.dims)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>40)%1000) / 1000
	}
	return v
}

func (f *fakeEmbedder) Dimensions() int                  { return f.dims }
func (f *fakeEmbedder) ModelName() string                { return "fake-test-embedder" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                     { return nil }
func (f *fakeEmbedder) SetBatchIndex(_ int)              {}
func (f *fakeEmbedder) SetFinalBatch(_ bool)             {}

func testIndexer(t *testing.T) *index.Indexer {
	t.Helper()
	embedder := &fakeEmbedder{dims: 32}
	collection := store.NewMemoryCollection(embedder)
	chunker, err := chunk.NewDocumentChunker(nil, chunk.Config{ChunkSize: 200, ChunkOverlap: 20})
	require.NoError(t, err)

	return index.NewIndexer(index.IndexerConfig{
		Collection:     collection,
		Chunker:        chunker,
		EmbeddingModel: embedder.ModelName(),
		StorageKind:    "memory",
	})
}

func addChunk(t *testing.T, idx *index.Indexer, source, content string) {
	t.Helper()
	c := &chunk.Chunk{
		Content: content,
		Metadata: map[string]any{
			chunk.MetaSource:     source,
			chunk.MetaChunkIndex: 0,
		},
	}
	require.NoError(t, idx.AddDocument(context.Background(), c))
}

func TestNewServer_RequiresIndexer(t *testing.T) {
	_, err := NewServer(nil, nil, "", nil)
	require.Error(t, err)
}

func TestNewServer_DefaultsConfigWhenNil(t *testing.T) {
	srv, err := NewServer(testIndexer(t), nil, "", nil)
	require.NoError(t, err)
	assert.NotNil(t, srv.config)
}

func TestServer_SearchHandler_RejectsEmptyQuery(t *testing.T) {
	srv, err := NewServer(testIndexer(t), nil, "", nil)
	require.NoError(t, err)

	_, _, err = srv.searchHandler(context.Background(), nil, SearchInput{})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_SearchHandler_FindsIndexedContent(t *testing.T) {
	idx := testIndexer(t)
	addChunk(t, idx, "/repo/main.go", "func handleRequest(w http.ResponseWriter, r *http.Request) {}")

	srv, err := NewServer(idx, nil, "/repo", nil)
	require.NoError(t, err)

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "handleRequest"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "main.go", out.Results[0].Source)
}

func TestServer_SearchHandler_DefaultsLimit(t *testing.T) {
	idx := testIndexer(t)
	for i := 0; i < 20; i++ {
		addChunk(t, idx, "/repo/file.go", "package main")
	}

	srv, err := NewServer(idx, nil, "/repo", nil)
	require.NoError(t, err)

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "package"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Results), 10)
}

func TestServer_StatusHandler_ReportsChunkCount(t *testing.T) {
	idx := testIndexer(t)
	addChunk(t, idx, "/repo/a.go", "package a")
	addChunk(t, idx, "/repo/b.go", "package b")

	srv, err := NewServer(idx, nil, "/repo", nil)
	require.NoError(t, err)

	_, out, err := srv.statusHandler(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ChunkCount)
	assert.Equal(t, 2, out.DistinctSources)
	assert.Equal(t, "memory", out.StorageKind)
}

func TestServer_RelPath_FallsBackOutsideRoot(t *testing.T) {
	srv, err := NewServer(testIndexer(t), nil, "/repo", nil)
	require.NoError(t, err)

	assert.Equal(t, "main.go", srv.relPath("/repo/main.go"))
	assert.Equal(t, "/elsewhere/main.go", srv.relPath("/elsewhere/main.go"))
}
