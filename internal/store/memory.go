package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ragidx/ragidx/internal/embed"
)

// memEntry is one stored document inside a MemoryCollection.
type memEntry struct {
	document string
	metadata map[string]any
	vector   []float32
}

// MemoryCollection is an in-memory, brute-force VectorCollection: no
// persistence, no HNSW graph, no BM25 index. It implements the same
// interface as HNSWCollection for fast tests and the `benchmark` command's
// baseline comparisons.
type MemoryCollection struct {
	mu       sync.RWMutex
	embedder embed.Embedder
	entries  map[string]*memEntry
}

// NewMemoryCollection returns an empty collection backed by embedder.
func NewMemoryCollection(embedder embed.Embedder) *MemoryCollection {
	return &MemoryCollection{embedder: embedder, entries: map[string]*memEntry{}}
}

// Add implements VectorCollection.
func (c *MemoryCollection) Add(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("store: memory collection: ids/documents/metadatas length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		return fmt.Errorf("store: memory collection: embed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range ids {
		c.entries[id] = &memEntry{document: documents[i], metadata: metadatas[i], vector: vectors[i]}
	}
	return nil
}

// Query implements VectorCollection.
func (c *MemoryCollection) Query(ctx context.Context, texts []string, n int, where Where) ([][]QueryResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	queryVecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("store: memory collection: embed query: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([][]QueryResult, len(texts))
	for qi, qv := range queryVecs {
		type scored struct {
			id    string
			entry *memEntry
			score float32
		}
		var candidates []scored
		for id, e := range c.entries {
			if !where.matches(e.metadata) {
				continue
			}
			candidates = append(candidates, scored{id: id, entry: e, score: cosineSimilarity(qv, e.vector)})
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
		if n > 0 && len(candidates) > n {
			candidates = candidates[:n]
		}

		results := make([]QueryResult, len(candidates))
		for i, c := range candidates {
			results[i] = QueryResult{DocID: c.id, Document: c.entry.document, Metadata: c.entry.metadata, Score: c.score}
		}
		out[qi] = results
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Get implements VectorCollection.
func (c *MemoryCollection) Get(ctx context.Context, where Where) ([]GetResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []GetResult
	for id, e := range c.entries {
		if !where.matches(e.metadata) {
			continue
		}
		out = append(out, GetResult{DocID: id, Document: e.document, Metadata: e.metadata})
	}
	return out, nil
}

// Delete implements VectorCollection.
func (c *MemoryCollection) Delete(ctx context.Context, ids []string, where Where) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.entries, id)
	}
	if len(where) > 0 {
		for id, e := range c.entries {
			if where.matches(e.metadata) {
				delete(c.entries, id)
			}
		}
	}
	return nil
}

// Count implements VectorCollection.
func (c *MemoryCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Reset implements VectorCollection.
func (c *MemoryCollection) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*memEntry{}
	return nil
}

// Close implements VectorCollection. MemoryCollection holds no external
// resources, so Close never fails.
func (c *MemoryCollection) Close() error { return nil }
