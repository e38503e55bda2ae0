package index

import (
	"fmt"
	"strings"

	"github.com/ragidx/ragidx/internal/chunk"
	"github.com/ragidx/ragidx/internal/tokencodec"
)

// ContextAssembler packs retrieved chunks into a single prompt-sized
// string, greedily in input order, dropping whatever would overflow
// max_tokens (spec.md §4.5).
type ContextAssembler struct {
	codec     tokencodec.Codec
	maxTokens int
}

// NewContextAssembler returns an assembler bounded to maxTokens, counted
// by codec (tokencodec.New() if nil).
func NewContextAssembler(codec tokencodec.Codec, maxTokens int) *ContextAssembler {
	if codec == nil {
		codec = tokencodec.New()
	}
	return &ContextAssembler{codec: codec, maxTokens: maxTokens}
}

// Assembled is ContextAssembler.Assemble's result (spec.md §4.5).
type Assembled struct {
	Content          string
	DocumentsIncluded int
	TotalTokens      int
	Truncated        bool
}

// Assemble packs systemPrompt (always included), then chunks in order
// (each wrapped with its source metadata), then userQuery. A chunk is
// dropped — and Truncated set — iff including it would exceed maxTokens.
// Empty input yields an empty, non-truncated Assembled.
func (a *ContextAssembler) Assemble(chunks []*chunk.Chunk, systemPrompt, userQuery string) Assembled {
	if len(chunks) == 0 && systemPrompt == "" && userQuery == "" {
		return Assembled{}
	}

	var parts []string
	total := 0
	truncated := false

	if systemPrompt != "" {
		parts = append(parts, systemPrompt)
		total += a.codec.Count(systemPrompt)
	}

	included := 0
	for _, c := range chunks {
		wrapped := wrapChunk(c)
		n := a.codec.Count(wrapped)
		if total+n > a.maxTokens {
			truncated = true
			continue
		}
		parts = append(parts, wrapped)
		total += n
		included++
	}

	if userQuery != "" {
		n := a.codec.Count(userQuery)
		if total+n > a.maxTokens {
			truncated = true
		} else {
			parts = append(parts, userQuery)
			total += n
		}
	}

	return Assembled{
		Content:           strings.Join(parts, "\n\n"),
		DocumentsIncluded: included,
		TotalTokens:       total,
		Truncated:         truncated,
	}
}

func wrapChunk(c *chunk.Chunk) string {
	source, _ := c.Metadata[chunk.MetaSource].(string)
	return fmt.Sprintf("# Source: %s\n%s", source, c.Content)
}
