package chunk

import (
	"fmt"

	"github.com/ragidx/ragidx/internal/tokencodec"
)

// ConfigError is returned when a Config is invalid.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "chunk: invalid config: " + e.Reason }

// DocumentChunker deterministically splits tokenized text into overlapping,
// token-bounded chunks (spec.md §4.2). It holds no per-call state: for a
// fixed (codec, chunk size, overlap) pair, Chunk is a pure function of its
// input bytes.
type DocumentChunker struct {
	codec  tokencodec.Codec
	config Config
}

// NewDocumentChunker validates cfg and binds it to codec. codec may be nil,
// in which case tokencodec.New() (the default word/punctuation codec) is
// used.
func NewDocumentChunker(codec tokencodec.Codec, cfg Config) (*DocumentChunker, error) {
	cfg = cfg.WithDefaults()
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, &ConfigError{Reason: fmt.Sprintf("chunk_overlap (%d) must be < chunk_size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)}
	}
	if cfg.ChunkSize <= 0 {
		return nil, &ConfigError{Reason: "chunk_size must be positive"}
	}
	if codec == nil {
		codec = tokencodec.New()
	}
	return &DocumentChunker{codec: codec, config: cfg}, nil
}

// Config returns the chunker's effective configuration.
func (c *DocumentChunker) Config() Config { return c.config }

// rawChunk is one sliding-window chunk before metadata/doc_id attachment.
type rawChunk struct {
	Content    string
	Index      int
	TokenCount int
	Start      int
	End        int // exclusive, in token units
}

// split runs the sliding-window algorithm over already-tokenized text
// (spec.md §4.2 "Algorithm"). It is the deterministic core: identical
// tokens always produce an identical []rawChunk.
func (c *DocumentChunker) split(tokens []string) []rawChunk {
	n := len(tokens)
	if n == 0 {
		return nil
	}

	size := c.config.ChunkSize
	stride := size - c.config.ChunkOverlap

	var out []rawChunk
	i := 0
	idx := 0
	for {
		end := i + size
		last := end >= n
		if last {
			end = n
		}

		out = append(out, rawChunk{
			Content:    c.codec.Decode(tokens[i:end]),
			Index:      idx,
			TokenCount: end - i,
			Start:      i,
			End:        end,
		})
		idx++

		if last {
			break
		}
		i += stride

		if c.config.MaxChunks > 0 && len(out) >= c.config.MaxChunks {
			break
		}
	}

	if c.config.MaxChunks > 0 && len(out) > c.config.MaxChunks {
		out = out[:c.config.MaxChunks]
	}

	return out
}

// Chunk splits text into Chunks carrying the provenance in doc. baseID is
// the stable per-document identifier (spec.md §3); every returned Chunk's
// DocID is "{baseID}#chunk{index}".
//
// Symbols, when non-nil, enriches every chunk's metadata with the file's
// AST symbol names (see uniqueSymbolNames); it never changes chunk
// boundaries, counts, or ordering.
func (c *DocumentChunker) Chunk(text string, doc documentMetadata, symbols []*Symbol) []*Chunk {
	tokens := c.codec.Encode(text)
	raws := c.split(tokens)

	baseID := BaseID(doc.Source)
	symbolNames := uniqueSymbolNames(symbols)
	chunks := make([]*Chunk, 0, len(raws))
	for _, r := range raws {
		md := map[string]any{
			MetaSource:       doc.Source,
			MetaFilename:     doc.Filename,
			MetaExtension:    doc.Extension,
			MetaLastModified: doc.LastModified.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
			MetaChunkIndex:   r.Index,
			MetaTokenCount:   r.TokenCount,
			MetaIsChunk:      true,
			MetaChunkStart:   r.Start,
			MetaChunkEnd:     r.End,
		}
		if len(symbolNames) > 0 {
			md[MetaSymbols] = symbolNames
		}

		chunks = append(chunks, &Chunk{
			Content:  r.Content,
			Metadata: md,
			DocID:    fmt.Sprintf("%s#chunk%d", baseID, r.Index),
		})
	}
	return chunks
}

// uniqueSymbolNames collects the distinct symbol names found anywhere in the
// file. Chunk boundaries are token-aligned, not line-aligned, so this is a
// file-level enrichment attached to every chunk of that file rather than a
// precise per-chunk containment test.
func uniqueSymbolNames(symbols []*Symbol) []string {
	if len(symbols) == 0 {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, s := range symbols {
		if s == nil || s.Name == "" || seen[s.Name] {
			continue
		}
		names = append(names, s.Name)
		seen[s.Name] = true
	}
	return names
}
