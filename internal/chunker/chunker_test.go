package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showdeck/importer/internal/model"
)

func src(text string) model.RawSource {
	return model.RawSource{ID: "src-1", RawText: text}
}

func TestChunk_EmptySourceYieldsNothing(t *testing.T) {
	c := New(0, 0)
	assert.Empty(t, c.Chunk(src("")))
	assert.Empty(t, c.Chunk(src("   \n\n  ")))
}

func TestChunk_SmallSourceIsOneChunk(t *testing.T) {
	c := New(100, 10)
	chunks := c.Chunk(src("Venue: The Fillmore\nDate: 2025-11-03"))
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "src-1", chunks[0].SourceID)
}

func TestChunk_RespectsBudgetAndOrder(t *testing.T) {
	para := strings.Repeat("word ", 40) // ~200 chars
	text := strings.Join([]string{para, para, para, para, para}, "\n\n")

	c := New(300, 20)
	chunks := c.Chunk(src(text))
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, len(ch.Text), 300)
		assert.Equal(t, "src-1", ch.SourceID)
	}
}

func TestChunk_CoversAllText(t *testing.T) {
	// Every position of the normalized text must appear in some chunk;
	// overlap means consecutive chunks share a suffix/prefix.
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)

	c := New(400, 50)
	chunks := c.Chunk(src(text))
	require.NotEmpty(t, chunks)

	normalized := chunks[0].Text
	for i := 1; i < len(chunks); i++ {
		cur := chunks[i].Text
		// Find the longest suffix of what we have that prefixes this chunk.
		joined := false
		max := len(cur)
		if max > len(normalized) {
			max = len(normalized)
		}
		for k := max; k >= 0; k-- {
			if strings.HasSuffix(normalized, cur[:k]) {
				normalized += cur[k:]
				joined = true
				break
			}
		}
		require.True(t, joined, "chunk %d does not continue the text", i)
	}
	assert.Equal(t, strings.TrimSpace(text), normalized)
}

func TestChunk_PrefersParagraphBreaks(t *testing.T) {
	first := strings.Repeat("a", 250)
	second := strings.Repeat("b", 200)
	text := first + "\n\n" + second

	c := New(300, 10)
	chunks := c.Chunk(src(text))
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, first+"\n", chunks[0].Text)
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	c := New(-1, -1)
	assert.Equal(t, DefaultMaxChars, c.maxChars)
	assert.Equal(t, DefaultOverlapChars, c.overlapChars)
}
