// Package index implements the central Indexer coordinator (spec.md §4.4),
// its ContextAssembler (§4.5), and PathFilter (§4.6).
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/gitignore"
	"github.com/ragidx/ragidx/internal/rerrors"
	"github.com/ragidx/ragidx/internal/store"
)

// DefaultMaxFileSize mirrors the teacher's guard against indexing
// pathologically large files (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

const defaultBatchSize = 100

// Document is the logical, reconstructed document spec.md §3 describes:
// chunks of one source concatenated in chunk_index order, with
// chunk-specific metadata keys stripped.
type Document struct {
	Source   string
	Content  string
	Metadata map[string]any
}

// Status is the result of GetStatus (spec.md §4.4.1).
type Status struct {
	CollectionName    string
	StorageKind       string
	ChunkCount        int
	DistinctSources   int
	ExtensionHistogram map[string]int
	ChunkSize         int
	ChunkOverlap      int
	EmbeddingModel    string

	// VectorOrphans is the HNSW graph's lazy-deleted node count (nil when
	// the collection doesn't expose vector stats, e.g. MemoryCollection).
	VectorOrphans *int
}

// SearchOptions configures Indexer.Search (spec.md §4.4.1).
type SearchOptions struct {
	NResults     int
	Where        store.Where
	GroupChunks  bool
	Paths        []string
	PathFilters  []string
	Weights      map[string]float64 // e.g. {"recency_boost": w}
	Explain      bool
}

// SearchHit is one entry of Indexer.Search's result.
type SearchHit struct {
	Chunk       *chunk.Chunk
	Distance    float32
	Score       float64            // combined score; only meaningful when SearchOptions.Weights was set
	Explanation map[string]float64 // populated only when Explain is set
}

// IndexerConfig configures a new Indexer.
type IndexerConfig struct {
	Collection     store.VectorCollection
	Chunker        *chunk.DocumentChunker
	Parser         *chunk.Parser         // optional, enables symbol enrichment
	Extractor      *chunk.SymbolExtractor // optional, enables symbol enrichment
	EmbeddingModel string
	StorageKind    string // "hnsw" or "memory", surfaced by GetStatus
	MaxFileSize    int64
}

// Indexer is the central coordinator described in spec.md §4.4: backed by
// a VectorCollection with a cosine similarity space and a batch-oriented
// add/get/query/delete surface.
type Indexer struct {
	mu        sync.Mutex
	collection store.VectorCollection
	chunker   *chunk.DocumentChunker
	parser    *chunk.Parser
	extractor *chunk.SymbolExtractor
	model     string
	kind      string
	maxSize   int64
}

// NewIndexer wires a VectorCollection and DocumentChunker into an Indexer.
func NewIndexer(cfg IndexerConfig) *Indexer {
	maxSize := cfg.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Indexer{
		collection: cfg.Collection,
		chunker:    cfg.Chunker,
		parser:     cfg.Parser,
		extractor:  cfg.Extractor,
		model:      cfg.EmbeddingModel,
		kind:       cfg.StorageKind,
		maxSize:    maxSize,
	}
}

// AddDocument adds a single chunk (spec.md §4.4.1).
func (idx *Indexer) AddDocument(ctx context.Context, c *chunk.Chunk) error {
	return idx.AddDocuments(ctx, []*chunk.Chunk{c}, defaultBatchSize)
}

// AddDocuments assigns a doc_id to any chunk missing one, groups chunks
// into batchSize batches, and issues one collection.Add per batch. A
// collision on an existing doc_id is an overwrite — the caller is
// responsible for pre-deleting older versions (spec.md §4.4.1, §4.4.2).
func (idx *Indexer) AddDocuments(ctx context.Context, chunks []*chunk.Chunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		if c.DocID == "" {
			source, _ := c.Metadata[chunk.MetaSource].(string)
			idxVal, _ := c.Metadata[chunk.MetaChunkIndex].(int)
			c.DocID = fmt.Sprintf("%s#chunk%d", chunk.BaseID(source), idxVal)
		}
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		ids := make([]string, len(batch))
		docs := make([]string, len(batch))
		metas := make([]map[string]any, len(batch))
		for i, c := range batch {
			ids[i] = c.DocID
			docs[i] = c.Content
			metas[i] = c.Metadata
		}

		if err := idx.collection.Add(ctx, ids, docs, metas); err != nil {
			return rerrors.CollectionError("add batch failed", err)
		}
	}
	return nil
}

// CollectDocuments walks root, filters excluded suffixes, and invokes
// chunk.FromFile per eligible file. It never writes to the collection
// (spec.md §4.4.1).
func (idx *Indexer) CollectDocuments(root string) ([]*chunk.Chunk, error) {
	matcher := gitignore.New()
	_ = matcher.AddFromFile(filepath.Join(root, ".gitignore"), "")

	var out []*chunk.Chunk
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel != "." && (d.Name() == ".git" || matcher.Match(rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}
		if chunk.IsExcludedSuffix(path) {
			return nil
		}
		info, statErr := d.Info()
		if statErr == nil && info.Size() > idx.maxSize {
			slog.Warn("skipping oversized file", slog.String("path", path), slog.Int64("size", info.Size()))
			return nil
		}

		chunks, err := chunk.FromFile(path, idx.chunker, idx.parser, idx.extractor)
		if err != nil {
			slog.Warn("skipping unreadable file", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		out = append(out, chunks...)
		return nil
	})
	if err != nil {
		return nil, rerrors.IOError("walk failed", err)
	}
	return out, nil
}

// IndexDirectory performs an incremental sync of root into the collection
// (spec.md §4.4.1): only files that are new or whose mtime (rounded to
// microseconds) exceeds the stored value are re-chunked and re-added.
// glob, when non-empty, additionally restricts which files are eligible.
func (idx *Indexer) IndexDirectory(ctx context.Context, root, glob string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stored, err := idx.storedMTimes(ctx)
	if err != nil {
		return err
	}

	chunks, err := idx.CollectDocuments(root)
	if err != nil {
		return err
	}

	var toIndex []*chunk.Chunk
	touched := map[string]time.Time{}
	for _, c := range chunks {
		source, _ := c.Metadata[chunk.MetaSource].(string)
		if glob != "" && !globMatch(glob, source) {
			continue
		}
		mtimeStr, _ := c.Metadata[chunk.MetaLastModified].(string)
		mtime, _ := time.Parse("2006-01-02T15:04:05.000000Z07:00", mtimeStr)
		mtime = mtime.Round(time.Microsecond)

		if prior, ok := stored[source]; ok && !mtime.After(prior) {
			continue
		}
		toIndex = append(toIndex, c)
		touched[source] = mtime
	}

	// Re-index a modified file by deleting its prior chunks before adding
	// the new ones — doc_ids may collide even though the chunk count
	// changed (spec.md §4.4.2).
	for source := range touched {
		if err := idx.collection.Delete(ctx, nil, store.Where{chunk.MetaSource: source}); err != nil {
			return rerrors.CollectionError("delete stale chunks failed", err)
		}
	}

	return idx.AddDocuments(ctx, toIndex, defaultBatchSize)
}

func (idx *Indexer) storedMTimes(ctx context.Context) (map[string]time.Time, error) {
	rows, err := idx.collection.Get(ctx, nil)
	if err != nil {
		return nil, rerrors.CollectionError("get failed", err)
	}
	out := map[string]time.Time{}
	for _, r := range rows {
		source, _ := r.Metadata[chunk.MetaSource].(string)
		mtimeStr, _ := r.Metadata[chunk.MetaLastModified].(string)
		mtime, err := time.Parse("2006-01-02T15:04:05.000000Z07:00", mtimeStr)
		if err != nil {
			continue
		}
		mtime = mtime.Round(time.Microsecond)
		if prior, ok := out[source]; !ok || mtime.After(prior) {
			out[source] = mtime
		}
	}
	return out, nil
}

// Search implements spec.md §4.4.1/§4.4.3/§4.4.4.
func (idx *Indexer) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchHit, error) {
	n := opts.NResults
	if n <= 0 {
		n = 10
	}
	fetchN := n
	if opts.GroupChunks {
		fetchN = n * 3
	}

	results, err := idx.collection.Query(ctx, []string{query}, fetchN, opts.Where)
	if err != nil {
		return nil, rerrors.CollectionError("query failed", err)
	}
	hits := results[0]

	var filtered []store.QueryResult
	pf := NewPathFilter()
	for _, h := range hits {
		source, _ := h.Metadata[chunk.MetaSource].(string)
		if !pf.Matches(source, opts.Paths, opts.PathFilters) {
			continue
		}
		filtered = append(filtered, h)
	}

	scored := make([]scoredHit, len(filtered))
	for i, h := range filtered {
		scored[i] = idx.score(h, opts)
	}

	var out []SearchHit
	if opts.GroupChunks {
		out = groupByMinDistance(scored, n, opts.Explain)
	} else {
		if len(scored) > n {
			scored = scored[:n]
		}
		out = make([]SearchHit, len(scored))
		for i, s := range scored {
			out[i] = s.toHit(opts.Explain)
		}
	}

	if len(opts.Weights) > 0 {
		rerankByScore(out)
	}
	return out, nil
}

// rerankByScore reorders hits descending by their combined score (spec.md
// §4.4.4). Grouping and the n-result cap have already been applied before
// this runs.
func rerankByScore(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

type scoredHit struct {
	hit        store.QueryResult
	distance   float32
	score      float32
	components map[string]float64
}

func (s scoredHit) toHit(explain bool) SearchHit {
	h := SearchHit{Chunk: queryResultToChunk(s.hit), Distance: s.distance, Score: float64(s.score)}
	if explain {
		h.Explanation = s.components
	}
	return h
}

// score converts a similarity Score (higher-better, [0,1]) into a
// distance (lower-better, spec.md's convention) and, when weights are
// supplied, folds in recency_boost and any other configured factor
// (spec.md §4.4.4).
func (idx *Indexer) score(h store.QueryResult, opts SearchOptions) scoredHit {
	distance := 1 - h.Score
	if len(opts.Weights) == 0 {
		return scoredHit{hit: h, distance: distance}
	}

	components := map[string]float64{"similarity": float64(1 - distance)}
	total := float64(1 - distance)
	for factor, weight := range opts.Weights {
		var value float64
		switch factor {
		case "recency_boost":
			value = recencyBoost(h.Metadata)
		}
		components[factor] = value
		total += weight * value
	}
	return scoredHit{hit: h, distance: distance, score: float32(total), components: components}
}

// recencyBoost is a linear decay in hours since last_modified: 1.0 at
// zero hours old, reaching 0 at 720 hours (30 days) and beyond.
func recencyBoost(metadata map[string]any) float64 {
	mtimeStr, _ := metadata[chunk.MetaLastModified].(string)
	mtime, err := time.Parse("2006-01-02T15:04:05.000000Z07:00", mtimeStr)
	if err != nil {
		return 0
	}
	hoursOld := time.Since(mtime).Hours()
	const window = 720.0
	if hoursOld >= window {
		return 0
	}
	if hoursOld < 0 {
		return 1
	}
	return 1 - hoursOld/window
}

// groupByMinDistance implements spec.md §4.4.3: groups hits by source,
// keeps the first n groups in arrival order, and returns the
// minimum-distance chunk per group (ties broken by smaller chunk_index).
func groupByMinDistance(scored []scoredHit, n int, explain bool) []SearchHit {
	order := []string{}
	groups := map[string][]scoredHit{}
	for _, s := range scored {
		source, _ := s.hit.Metadata[chunk.MetaSource].(string)
		if _, ok := groups[source]; !ok {
			order = append(order, source)
		}
		groups[source] = append(groups[source], s)
	}

	if len(order) > n {
		order = order[:n]
	}

	out := make([]SearchHit, 0, len(order))
	for _, source := range order {
		members := groups[source]
		best := members[0]
		for _, m := range members[1:] {
			if m.distance < best.distance || (m.distance == best.distance && chunkIndexOf(m.hit) < chunkIndexOf(best.hit)) {
				best = m
			}
		}
		out = append(out, best.toHit(explain))
	}
	return out
}

func chunkIndexOf(h store.QueryResult) int {
	switch v := h.Metadata[chunk.MetaChunkIndex].(type) {
	case int:
		return v
	case float64: // metadata decoded from JSON
		return int(v)
	}
	return 0
}

func queryResultToChunk(h store.QueryResult) *chunk.Chunk {
	return &chunk.Chunk{Content: h.Document, Metadata: h.Metadata, DocID: h.DocID}
}

// GetDocumentChunks returns every chunk of baseID, sorted by chunk_index
// (spec.md §4.4.1).
func (idx *Indexer) GetDocumentChunks(ctx context.Context, baseID string) ([]*chunk.Chunk, error) {
	rows, err := idx.collection.Get(ctx, store.Where{chunk.MetaSource: baseID})
	if err != nil {
		return nil, rerrors.CollectionError("get failed", err)
	}
	chunks := make([]*chunk.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = &chunk.Chunk{Content: r.Document, Metadata: r.Metadata, DocID: r.DocID}
	}
	sort.Slice(chunks, func(i, j int) bool {
		ci := chunkIndexOf(store.QueryResult{Metadata: chunks[i].Metadata})
		cj := chunkIndexOf(store.QueryResult{Metadata: chunks[j].Metadata})
		return ci < cj
	})
	return chunks, nil
}

// chunkOnlyMetaKeys mirrors chunk's unexported list: metadata keys that
// only make sense per-chunk and are stripped when reconstructing a
// logical Document (spec.md §3).
var chunkOnlyMetaKeys = []string{chunk.MetaChunkIndex, chunk.MetaTokenCount, chunk.MetaIsChunk, chunk.MetaChunkStart, chunk.MetaChunkEnd}

// ReconstructDocument concatenates baseID's chunks in chunk_index order
// into one logical Document (spec.md §3, §4.4.1). Fails with
// NotFoundError when no chunks exist.
func (idx *Indexer) ReconstructDocument(ctx context.Context, baseID string) (*Document, error) {
	chunks, err := idx.GetDocumentChunks(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, rerrors.NotFoundError(fmt.Sprintf("no chunks found for %s", baseID), nil)
	}

	var content strings.Builder
	for i, c := range chunks {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(c.Content)
	}

	metadata := map[string]any{}
	for k, v := range chunks[0].Metadata {
		metadata[k] = v
	}
	for _, k := range chunkOnlyMetaKeys {
		delete(metadata, k)
	}

	return &Document{Source: baseID, Content: content.String(), Metadata: metadata}, nil
}

// DeleteDocument best-effort deletes baseID's id directly, then deletes
// where source=baseID. Returns true only if both phases completed without
// error (spec.md §4.4.1).
func (idx *Indexer) DeleteDocument(ctx context.Context, baseID string) (bool, error) {
	err1 := idx.collection.Delete(ctx, []string{baseID}, nil)
	err2 := idx.collection.Delete(ctx, nil, store.Where{chunk.MetaSource: baseID})
	if err1 != nil || err2 != nil {
		if err1 != nil {
			return false, rerrors.CollectionError("delete failed", err1)
		}
		return false, rerrors.CollectionError("delete failed", err2)
	}
	return true, nil
}

// ReconcileGitignore re-syncs the index against root's top-level .gitignore
// after the watcher reports it changed: sources that now match a
// newly-added pattern are dropped from the index, and on-disk files that
// match a newly-removed pattern (and were never indexed) are chunked and
// added. Nested .gitignore files are not reconciled (IndexDirectory reads
// only the root file as well); this only reconciles the root file a watcher.OpGitignoreChange
// event names, using oldContent/newContent captured around the event.
func (idx *Indexer) ReconcileGitignore(ctx context.Context, root, oldContent, newContent string) (removedSources []string, addedChunks []*chunk.Chunk, err error) {
	addedPatterns, removedPatterns := gitignore.DiffPatterns(oldContent, newContent)
	if len(addedPatterns) == 0 && len(removedPatterns) == 0 {
		return nil, nil, nil
	}

	tracked, err := idx.storedMTimes(ctx)
	if err != nil {
		return nil, nil, err
	}

	for source := range tracked {
		rel, relErr := filepath.Rel(root, source)
		if relErr != nil {
			continue
		}
		if !gitignore.MatchesAnyPattern(rel, addedPatterns) {
			continue
		}
		if _, derr := idx.DeleteDocument(ctx, chunk.BaseID(source)); derr != nil {
			slog.Warn("gitignore_reconcile_delete_failed", slog.String("path", source), slog.String("error", derr.Error()))
			continue
		}
		removedSources = append(removedSources, source)
	}

	if len(removedPatterns) == 0 {
		return removedSources, nil, nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, werr error) error {
		if werr != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if _, known := tracked[path]; known {
			return nil
		}
		if !gitignore.MatchesAnyPattern(rel, removedPatterns) || chunk.IsExcludedSuffix(path) {
			return nil
		}

		chunks, cerr := chunk.FromFile(path, idx.chunker, idx.parser, idx.extractor)
		if cerr != nil {
			slog.Warn("gitignore_reconcile_chunk_failed", slog.String("path", path), slog.String("error", cerr.Error()))
			return nil
		}
		if aerr := idx.AddDocuments(ctx, chunks, 0); aerr != nil {
			slog.Warn("gitignore_reconcile_add_failed", slog.String("path", path), slog.String("error", aerr.Error()))
			return nil
		}
		addedChunks = append(addedChunks, chunks...)
		return nil
	})
	if walkErr != nil {
		return removedSources, addedChunks, rerrors.IOError("reconcile walk failed", walkErr)
	}
	return removedSources, addedChunks, nil
}

// VerifyDocument probes for path's content up to retries times, waiting
// delay between attempts, to cope with the vector store's eventual
// indexing of newly added vectors (spec.md §4.4.1, used by the watcher).
func (idx *Indexer) VerifyDocument(ctx context.Context, path, content string, retries int, delay time.Duration) (bool, error) {
	if retries <= 0 {
		retries = 3
	}
	probe := content
	if len(probe) > 100 {
		probe = probe[:100]
	}
	canonical := chunk.Canonicalize(path)

	for attempt := 0; attempt < retries; attempt++ {
		hits, err := idx.Search(ctx, probe, SearchOptions{NResults: 1, Where: store.Where{chunk.MetaSource: canonical}, GroupChunks: false})
		if err == nil && len(hits) > 0 && strings.Contains(hits[0].Chunk.Content, probe) {
			return true, nil
		}
		if attempt < retries-1 {
			time.Sleep(delay)
		}
	}
	return false, rerrors.VerificationError(fmt.Sprintf("probe not found for %s after %d retries", path, retries), nil)
}

// GetStatus returns the storage kind, chunk count, distinct-source count,
// per-extension histogram, and chunking config (spec.md §4.4.1).
// CollectionName is left empty: no VectorCollection carries a name.
func (idx *Indexer) GetStatus(ctx context.Context) (*Status, error) {
	count, err := idx.collection.Count(ctx)
	if err != nil {
		return nil, rerrors.CollectionError("count failed", err)
	}

	rows, err := idx.collection.Get(ctx, nil)
	if err != nil {
		return nil, rerrors.CollectionError("get failed", err)
	}

	sources := map[string]bool{}
	histogram := map[string]int{}
	for _, r := range rows {
		if source, ok := r.Metadata[chunk.MetaSource].(string); ok {
			sources[source] = true
		}
		if ext, ok := r.Metadata[chunk.MetaExtension].(string); ok {
			histogram[ext]++
		}
	}

	cfg := idx.chunker.Config()
	status := &Status{
		StorageKind:        idx.kind,
		ChunkCount:         count,
		DistinctSources:    len(sources),
		ExtensionHistogram: histogram,
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		EmbeddingModel:     idx.model,
	}

	if provider, ok := idx.collection.(interface{ VectorStats() store.HNSWStats }); ok {
		orphans := provider.VectorStats().Orphans
		status.VectorOrphans = &orphans
	}

	return status, nil
}
