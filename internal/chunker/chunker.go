package chunker

import (
	"strings"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
)

// Chunker splits normalized source text into bounded segments sized to fit
// the downstream extraction context.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// Defaults: ~2000 tokens of budget at the usual chars/4 estimate, with a
// small overlap so field tokens straddling a boundary appear whole in at
// least one chunk.
const (
	DefaultMaxChars     = 8000
	DefaultOverlapChars = 200
)

// New returns a Chunker with the given character budget. Non-positive
// arguments fall back to the defaults.
func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = DefaultOverlapChars
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Chunk splits one source's normalized text into ordered chunks. An empty or
// whitespace-only source yields zero chunks. Boundaries prefer paragraph
// breaks, then sentence ends, over mid-word cuts.
func (c *Chunker) Chunk(src model.RawSource) []model.TextChunk {
	text := normalize.Text(src.RawText)
	if text == "" {
		return nil
	}

	if len(text) <= c.maxChars {
		return []model.TextChunk{{SourceID: src.ID, Index: 0, Text: text}}
	}

	var chunks []model.TextChunk
	pos := 0
	for pos < len(text) {
		end := pos + c.maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = pos + splitPoint(text[pos:end])
		}

		piece := text[pos:end]
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, model.TextChunk{
				SourceID: src.ID,
				Index:    len(chunks),
				Text:     piece,
			})
		}

		if end >= len(text) {
			break
		}
		pos = end - c.overlapChars
		if pos < 0 {
			pos = 0
		}
	}
	return chunks
}

// splitPoint finds the best cut inside a full-budget window: a paragraph
// break in the last third, else a sentence end, else a space, else the hard
// budget.
func splitPoint(window string) int {
	searchFrom := len(window) * 2 / 3

	if idx := strings.LastIndex(window[searchFrom:], "\n\n"); idx >= 0 {
		return searchFrom + idx + 1
	}
	for _, mark := range []string{". ", ".\n", "! ", "? "} {
		if idx := strings.LastIndex(window[searchFrom:], mark); idx >= 0 {
			return searchFrom + idx + len(mark)
		}
	}
	if idx := strings.LastIndexByte(window[searchFrom:], ' '); idx >= 0 {
		return searchFrom + idx + 1
	}
	return len(window)
}
