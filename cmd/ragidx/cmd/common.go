package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/config"
	"github.com/ragidx/ragidx/internal/embed"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/store"
	"github.com/ragidx/ragidx/internal/telemetry"
)

// dataDirName is the per-project directory ragidx keeps its index and
// logs under, mirroring the teacher's single dotdir-per-project layout.
const dataDirName = ".ragidx"

// projectRoot resolves the project root for the current working
// directory, falling back to the cwd itself when no project markers exist.
func projectRoot() (string, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return os.Getwd()
	}
	return root, nil
}

// loadConfig loads layered config for root, falling back to defaults on error.
func loadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		return config.NewConfig()
	}
	return cfg
}

// buildEmbedder constructs the configured embedder, defaulting to Ollama.
func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider := embed.ProviderType(cfg.Embeddings.Provider)
	if provider == "" {
		provider = embed.ProviderOllama
	}
	return embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
}

// buildCollection opens the persistent HNSW-backed collection for root,
// creating its data directory if needed.
func buildCollection(root string, cfg *config.Config, embedder embed.Embedder) (*store.HNSWCollection, error) {
	dataDir := filepath.Join(root, dataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	bm25Path := ""
	if cfg.Search.BM25Weight > 0 {
		bm25Path = filepath.Join(dataDir, "bm25")
	}

	return store.NewHNSWCollection(store.HNSWCollectionConfig{
		Embedder:   embedder,
		DBPath:     filepath.Join(dataDir, "documents.db"),
		VectorPath: filepath.Join(dataDir, "vectors.hnsw"),
		BM25Path:   bm25Path,
		BM25Weight: float32(cfg.Search.BM25Weight),
	})
}

// buildChunker constructs the sliding-window chunker from cfg, with
// optional tree-sitter symbol enrichment.
func buildChunker(cfg *config.Config) (*chunk.DocumentChunker, error) {
	return chunk.NewDocumentChunker(nil, chunk.Config{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		MaxChunks:    cfg.Chunking.MaxChunks,
	})
}

// buildIndexer wires an Indexer against root's persistent collection.
// Callers must Close() the returned collection when done with the indexer.
func buildIndexer(ctx context.Context, root string, cfg *config.Config) (*index.Indexer, *store.HNSWCollection, embed.Embedder, error) {
	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	collection, err := buildCollection(root, cfg, embedder)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, nil, fmt.Errorf("open collection: %w", err)
	}

	chunker, err := buildChunker(cfg)
	if err != nil {
		_ = collection.Close()
		_ = embedder.Close()
		return nil, nil, nil, fmt.Errorf("build chunker: %w", err)
	}

	parser := chunk.NewParser()
	extractor := chunk.NewSymbolExtractor()

	idx := index.NewIndexer(index.IndexerConfig{
		Collection:     collection,
		Chunker:        chunker,
		Parser:         parser,
		Extractor:      extractor,
		EmbeddingModel: embedder.ModelName(),
		StorageKind:    "hnsw",
	})

	return idx, collection, embedder, nil
}

// closeIndexerDeps persists and releases the collection and embedder
// buildIndexer opened.
func closeIndexerDeps(ctx context.Context, collection *store.HNSWCollection, embedder embed.Embedder) {
	if collection != nil {
		_ = collection.Save(ctx)
		_ = collection.Close()
	}
	if embedder != nil {
		_ = embedder.Close()
	}
}

// buildQueryMetrics wires a query telemetry collector onto collection's
// own SQLite connection, so per-project search telemetry lives alongside
// its documents rather than in a separate store. flushInterval is passed
// straight through to QueryMetricsConfig: one-shot commands (search)
// should pass 0 and call Flush/Close themselves before exiting, since a
// ticker goroutine would never fire before the process exits; the
// long-running mcp server passes a real interval so telemetry survives
// a client that never calls Close.
func buildQueryMetrics(collection *store.HNSWCollection, flushInterval time.Duration) (*telemetry.QueryMetrics, error) {
	db := collection.DB()
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		return nil, fmt.Errorf("init telemetry schema: %w", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		return nil, fmt.Errorf("open metrics store: %w", err)
	}
	cfg := telemetry.DefaultQueryMetricsConfig()
	cfg.FlushInterval = flushInterval
	return telemetry.NewQueryMetricsWithConfig(metricsStore, cfg), nil
}

// buildQueryMetricsServer is buildQueryMetrics for the long-running mcp
// server: it keeps QueryMetricsConfig's default auto-flush interval so
// telemetry survives a client that never triggers a clean shutdown.
func buildQueryMetricsServer(collection *store.HNSWCollection) (*telemetry.QueryMetrics, error) {
	return buildQueryMetrics(collection, telemetry.DefaultQueryMetricsConfig().FlushInterval)
}
