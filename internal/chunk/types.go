// Package chunk implements the deterministic, token-bounded overlapping
// document chunker and its supporting AST-derived symbol enrichment.
package chunk

import "time"

// Chunk size defaults. 512/64 favors retrieval-tuned embedders; callers
// needing the larger teacher default (1000/200) set Config explicitly.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 64
)

// Metadata keys that every chunk carries (spec.md §3).
const (
	MetaSource       = "source"
	MetaFilename     = "filename"
	MetaExtension    = "extension"
	MetaLastModified = "last_modified"
	MetaChunkIndex   = "chunk_index"
	MetaTokenCount   = "token_count"
	MetaIsChunk      = "is_chunk"
	MetaChunkStart   = "chunk_start"
	MetaChunkEnd     = "chunk_end"
	MetaSymbols      = "symbols"
)

// chunkOnlyMetaKeys are stripped when reconstructing a logical document from
// its chunks (spec.md §3 "Document (logical)").
var chunkOnlyMetaKeys = []string{MetaChunkIndex, MetaTokenCount, MetaIsChunk, MetaChunkStart, MetaChunkEnd}

// Chunk is the stored unit described in spec.md §3.
type Chunk struct {
	Content  string
	Metadata map[string]any
	DocID    string
}

// Config configures the DocumentChunker (spec.md §4.2).
type Config struct {
	ChunkSize    int // tokens, default DefaultChunkSize
	ChunkOverlap int // tokens, default DefaultChunkOverlap, must be < ChunkSize
	MaxChunks    int // 0 = unbounded
}

// WithDefaults fills zero fields with DefaultChunkSize/DefaultChunkOverlap.
func (c Config) WithDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	return c
}

// SymbolType represents the kind of code symbol.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// Symbol represents a code symbol extracted from parsing, used only to
// enrich chunk metadata (spec.md's DocumentChunker expansion); it never
// affects chunk boundaries or counts.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	NameField      string
}

// documentMetadata is the provenance attached to every chunk of one file
// (spec.md §3 invariant 2).
type documentMetadata struct {
	Source       string
	Filename     string
	Extension    string
	LastModified time.Time
}
