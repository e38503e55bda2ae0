package chunk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BaseID derives the stable per-document identifier from a file path
// (spec.md §3 invariant 1, §9 "Chunk-id ambiguity"). It always canonicalizes
// the path first (absolute, symlinks resolved) so two paths naming the same
// file collapse onto one id; a content-hash fallback is deliberately not
// implemented (see SPEC_FULL.md's Open Question Decisions).
func BaseID(path string) string {
	return Canonicalize(path)
}

// Canonicalize resolves path to its absolute, symlink-free form. If the
// file does not exist (or symlinks cannot be resolved, e.g. it was already
// deleted), it falls back to the absolute form so callers can still compute
// a stable id for a just-deleted path.
func Canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// ExcludedSuffixes are binary/database file suffixes DocumentSource never
// reads, matching spec.md §4.3 ("excluded by the caller, not here" — the
// caller is collect_documents/index_directory, see internal/index).
var ExcludedSuffixes = []string{".sqlite3", ".db", ".bin", ".pyc"}

// IsExcludedSuffix reports whether path carries one of ExcludedSuffixes.
func IsExcludedSuffix(path string) bool {
	lower := strings.ToLower(path)
	for _, suf := range ExcludedSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// FromFile reads path once, fetches its mtime once, and runs chunker over
// its content, attaching provenance metadata to every emitted chunk
// (spec.md §4.3). When parser/extractor are non-nil and the file's
// extension is a recognized language, chunks are enriched with symbol names
// (see DocumentChunker.Chunk).
func FromFile(path string, chunker *DocumentChunker, parser *Parser, extractor *SymbolExtractor) ([]*Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("chunk: %s is a directory", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: read %s: %w", path, err)
	}

	abs := Canonicalize(path)
	doc := documentMetadata{
		Source:       abs,
		Filename:     filepath.Base(abs),
		Extension:    strings.TrimPrefix(filepath.Ext(abs), "."),
		LastModified: info.ModTime(),
	}

	var symbols []*Symbol
	if parser != nil && extractor != nil {
		if lang, ok := parser.registry.GetByExtension(doc.Extension); ok {
			if tree, err := parser.Parse(context.Background(), content, lang.Name); err == nil {
				symbols = extractor.Extract(tree, content)
			}
		}
	}

	return chunker.Chunk(string(content), doc, symbols), nil
}
