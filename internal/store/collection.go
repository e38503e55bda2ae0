package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ragidx/ragidx/internal/embed"
)

// Where is an equality filter over chunk metadata, as accepted by
// VectorCollection.Query/Get/Delete. Every key must match
// exactly; an empty/nil Where matches everything.
type Where map[string]string

// matches reports whether metadata satisfies every key/value in w.
func (w Where) matches(metadata map[string]any) bool {
	for k, v := range w {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != v {
			return false
		}
	}
	return true
}

// QueryResult is one hit returned by VectorCollection.Query.
type QueryResult struct {
	DocID    string
	Document string
	Metadata map[string]any
	Score    float32 // combined similarity score, higher is better
}

// GetResult is one row returned by VectorCollection.Get.
type GetResult struct {
	DocID    string
	Document string
	Metadata map[string]any
}

// VectorCollection is a Chroma-shaped storage abstraction: callers pass
// raw text and metadata, the collection owns embedding internally, and
// optional BM25 rescoring folds keyword matches into the similarity score
// before it reaches the caller.
type VectorCollection interface {
	// Add embeds documents and stores them under ids with metadatas.
	// len(ids) == len(documents) == len(metadatas) must hold.
	Add(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error

	// Query embeds texts and returns, per query text, up to n nearest
	// documents matching where (nil/empty matches everything).
	Query(ctx context.Context, texts []string, n int, where Where) ([][]QueryResult, error)

	// Get returns every stored document matching where (nil/empty returns
	// everything), without touching the embedder or vector index.
	Get(ctx context.Context, where Where) ([]GetResult, error)

	// Delete removes documents by id, by where, or both (the union of the
	// two selections is removed.
	Delete(ctx context.Context, ids []string, where Where) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Reset empties the collection, discarding all documents and BM25
	// postings. HNSWCollection lazy-deletes its vectors: they stop being
	// returned but their graph nodes remain as orphans.
	Reset(ctx context.Context) error

	// Close releases underlying resources (database handles, index files).
	Close() error
}

// HNSWCollection is the persistent VectorCollection backed by an
// HNSWStore for vector similarity, a DocumentStore for content/metadata,
// and an optional BM25Index used purely as a rescoring factor: vector
// search picks the candidate set, BM25 only re-weights it.
type HNSWCollection struct {
	embedder embed.Embedder
	vectors  *HNSWStore
	docs     *DocumentStore
	bm25     BM25Index // nil disables keyword rescoring
	bm25Path string

	vectorPath string
	bm25Weight float32
}

// HNSWCollectionConfig configures NewHNSWCollection.
type HNSWCollectionConfig struct {
	Embedder   embed.Embedder
	DBPath     string // DocumentStore sqlite file
	VectorPath string // HNSWStore persisted graph file
	BM25Path   string // bleve index dir/mem; empty string disables BM25 rescoring
	BM25Weight float32
}

// NewHNSWCollection opens or creates the collection's backing stores.
func NewHNSWCollection(cfg HNSWCollectionConfig) (*HNSWCollection, error) {
	docs, err := NewDocumentStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("store: collection: %w", err)
	}

	vcfg := DefaultVectorStoreConfig(cfg.Embedder.Dimensions())
	vectors, err := NewHNSWStore(vcfg)
	if err != nil {
		docs.Close()
		return nil, fmt.Errorf("store: collection: %w", err)
	}
	if cfg.VectorPath != "" {
		if err := vectors.Load(cfg.VectorPath); err != nil {
			// A missing file means "new collection"; any other error is corruption.
			if !errors.Is(err, os.ErrNotExist) {
				docs.Close()
				return nil, fmt.Errorf("store: collection: load vectors: %w", err)
			}
		}
	}

	var bm25 BM25Index
	if cfg.BM25Path != "" {
		idx, err := NewBleveBM25Index(cfg.BM25Path, DefaultBM25Config())
		if err != nil {
			docs.Close()
			return nil, fmt.Errorf("store: collection: bm25: %w", err)
		}
		bm25 = idx
	}

	weight := cfg.BM25Weight
	if weight == 0 {
		weight = 0.3
	}

	return &HNSWCollection{
		embedder:   cfg.Embedder,
		vectors:    vectors,
		docs:       docs,
		bm25:       bm25,
		bm25Path:   cfg.BM25Path,
		vectorPath: cfg.VectorPath,
		bm25Weight: weight,
	}, nil
}

// Add implements VectorCollection.
func (c *HNSWCollection) Add(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("store: collection: ids/documents/metadatas length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		return fmt.Errorf("store: collection: embed: %w", err)
	}
	if err := c.vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("store: collection: add vectors: %w", err)
	}

	now := time.Now().UTC()
	records := make([]*DocRecord, len(ids))
	bm25docs := make([]*Document, len(ids))
	for i, id := range ids {
		meta, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("store: collection: marshal metadata: %w", err)
		}
		source, _ := metadatas[i]["source"].(string)
		records[i] = &DocRecord{
			DocID: id, Source: source, Content: documents[i], Metadata: string(meta),
			CreatedAt: now, UpdatedAt: now,
		}
		bm25docs[i] = &Document{ID: id, Content: documents[i]}
	}
	if err := c.docs.Upsert(ctx, records); err != nil {
		return fmt.Errorf("store: collection: upsert documents: %w", err)
	}

	if c.bm25 != nil {
		if err := c.bm25.Index(ctx, bm25docs); err != nil {
			return fmt.Errorf("store: collection: bm25 index: %w", err)
		}
	}
	return nil
}

// Query implements VectorCollection.
func (c *HNSWCollection) Query(ctx context.Context, texts []string, n int, where Where) ([][]QueryResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	queryVecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("store: collection: embed query: %w", err)
	}

	// Over-fetch to leave room for the where filter and BM25 rescoring to
	// still surface n results after narrowing the candidate set.
	fetchN := n * 4
	if fetchN < n+20 {
		fetchN = n + 20
	}

	out := make([][]QueryResult, len(texts))
	for qi, qv := range queryVecs {
		hits, err := c.vectors.Search(ctx, qv, fetchN)
		if err != nil {
			return nil, fmt.Errorf("store: collection: search: %w", err)
		}

		var bm25Scores map[string]float64
		if c.bm25 != nil {
			bm25Scores = map[string]float64{}
			if res, err := c.bm25.Search(ctx, texts[qi], fetchN); err == nil {
				for _, r := range res {
					bm25Scores[r.DocID] = r.Score
				}
			}
		}

		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		docs, err := c.docs.Get(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("store: collection: get documents: %w", err)
		}
		byID := make(map[string]*DocRecord, len(docs))
		for _, d := range docs {
			byID[d.DocID] = d
		}

		results := make([]QueryResult, 0, len(hits))
		for _, h := range hits {
			d, ok := byID[h.ID]
			if !ok {
				continue
			}
			var meta map[string]any
			if err := json.Unmarshal([]byte(d.Metadata), &meta); err != nil {
				meta = map[string]any{}
			}
			if !where.matches(meta) {
				continue
			}

			score := h.Score
			if bm25Scores != nil {
				if bm, ok := bm25Scores[h.ID]; ok {
					score = (1-c.bm25Weight)*score + c.bm25Weight*float32(normalizeBM25(bm))
				}
			}

			results = append(results, QueryResult{DocID: d.DocID, Document: d.Content, Metadata: meta, Score: score})
			if len(results) >= n {
				break
			}
		}
		out[qi] = results
	}
	return out, nil
}

// normalizeBM25 squashes an unbounded BM25 score into roughly [0,1] with a
// saturating curve, so it can be linearly blended with cosine similarity.
func normalizeBM25(score float64) float64 {
	return score / (score + 1)
}

// Get implements VectorCollection.
func (c *HNSWCollection) Get(ctx context.Context, where Where) ([]GetResult, error) {
	ids, err := c.docs.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: collection: get: %w", err)
	}
	docs, err := c.docs.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("store: collection: get: %w", err)
	}

	out := make([]GetResult, 0, len(docs))
	for _, d := range docs {
		var meta map[string]any
		if err := json.Unmarshal([]byte(d.Metadata), &meta); err != nil {
			meta = map[string]any{}
		}
		if !where.matches(meta) {
			continue
		}
		out = append(out, GetResult{DocID: d.DocID, Document: d.Content, Metadata: meta})
	}
	return out, nil
}

// Delete implements VectorCollection.
func (c *HNSWCollection) Delete(ctx context.Context, ids []string, where Where) error {
	targets := map[string]bool{}
	for _, id := range ids {
		targets[id] = true
	}
	if len(where) > 0 {
		matched, err := c.Get(ctx, where)
		if err != nil {
			return err
		}
		for _, m := range matched {
			targets[m.DocID] = true
		}
	}
	if len(targets) == 0 {
		return nil
	}

	idList := make([]string, 0, len(targets))
	for id := range targets {
		idList = append(idList, id)
	}

	if err := c.vectors.Delete(ctx, idList); err != nil {
		return fmt.Errorf("store: collection: delete vectors: %w", err)
	}
	if err := c.docs.Delete(ctx, idList); err != nil {
		return fmt.Errorf("store: collection: delete documents: %w", err)
	}
	if c.bm25 != nil {
		if err := c.bm25.Delete(ctx, idList); err != nil {
			return fmt.Errorf("store: collection: delete bm25: %w", err)
		}
	}
	return nil
}

// Count implements VectorCollection.
func (c *HNSWCollection) Count(ctx context.Context) (int, error) {
	return c.docs.Count(ctx)
}

// Reset implements VectorCollection.
func (c *HNSWCollection) Reset(ctx context.Context) error {
	ids, err := c.docs.AllIDs(ctx)
	if err != nil {
		return fmt.Errorf("store: collection: reset: %w", err)
	}
	return c.Delete(ctx, ids, nil)
}

// VectorStats reports the backing HNSWStore's node/orphan counts, so
// callers (status reporting, clean) can see how much lazy-deletion
// bloat has built up without reaching into the store directly.
func (c *HNSWCollection) VectorStats() HNSWStats { return c.vectors.Stats() }

// Documents returns this collection's backing DocumentStore, used by
// index.Indexer for operations that need raw access (reconstruct_document,
// incremental sync) without going through the VectorCollection interface.
func (c *HNSWCollection) Documents() *DocumentStore { return c.docs }

// Save persists the vector index and BM25 index to disk (the
// DocumentStore is always durable since it's SQLite-backed).
func (c *HNSWCollection) Save(ctx context.Context) error {
	if c.vectorPath != "" {
		if err := c.vectors.Save(c.vectorPath); err != nil {
			return fmt.Errorf("store: collection: save vectors: %w", err)
		}
	}
	if c.bm25 != nil && c.bm25Path != "" {
		if err := c.bm25.Save(c.bm25Path); err != nil {
			return fmt.Errorf("store: collection: save bm25: %w", err)
		}
	}
	return nil
}

// Close implements VectorCollection.
func (c *HNSWCollection) Close() error {
	var firstErr error
	if err := c.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c.bm25 != nil {
		if err := c.bm25.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.docs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// DB exposes the collection's document store connection so callers can
// bolt on sibling tables (query telemetry) onto the same SQLite file
// instead of managing a second connection.
func (c *HNSWCollection) DB() *sql.DB {
	return c.docs.DB()
}
