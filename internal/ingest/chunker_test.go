package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunker_WindowOffsets(t *testing.T) {
	chunker := NewChunker(250, 25)

	chunks := chunker.Chunk(wordText(600), 4)
	require.Len(t, chunks, 3)

	// Windows advance by size minus overlap.
	assert.Equal(t, 0, chunks[0].WordOffset)
	assert.Equal(t, 225, chunks[1].WordOffset)
	assert.Equal(t, 450, chunks[2].WordOffset)

	assert.Len(t, strings.Fields(chunks[0].Text), 250)
	assert.Len(t, strings.Fields(chunks[1].Text), 250)
	// Final window is the remainder.
	assert.Len(t, strings.Fields(chunks[2].Text), 150)

	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestChunker_SingleShortDocument(t *testing.T) {
	chunker := NewChunker(250, 25)
	chunks := chunker.Chunk(wordText(40), 1)
	require.Len(t, chunks, 1)
	assert.Len(t, strings.Fields(chunks[0].Text), 40)
	assert.Equal(t, 1, chunks[0].Page)
}

func TestChunker_ExactWindowFit(t *testing.T) {
	chunker := NewChunker(250, 25)
	chunks := chunker.Chunk(wordText(250), 1)
	require.Len(t, chunks, 2)

	// The window ends exactly on the last word, but the next start offset
	// is still inside the document, so an overlap-only trailing window
	// follows.
	assert.Equal(t, 0, chunks[0].WordOffset)
	assert.Equal(t, 225, chunks[1].WordOffset)
	assert.Len(t, strings.Fields(chunks[1].Text), 25)
}

func TestChunker_EmptyText(t *testing.T) {
	chunker := NewChunker(250, 25)
	assert.Empty(t, chunker.Chunk("", 3))
	assert.Empty(t, chunker.Chunk("   \n\t  ", 3))
}

func TestChunker_OverlapSharesWords(t *testing.T) {
	chunker := NewChunker(250, 25)
	chunks := chunker.Chunk(wordText(475), 2)
	require.Len(t, chunks, 3)

	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	third := strings.Fields(chunks[2].Text)
	assert.Equal(t, first[225:], second[:25])

	// Second window ends on word 475; the trailing window at offset 450
	// holds only the 25 words it shares with it.
	assert.Equal(t, 450, chunks[2].WordOffset)
	assert.Equal(t, second[225:], third)
}

func TestEstimatePage(t *testing.T) {
	// 600 words over 4 pages: 150 words per page.
	assert.Equal(t, 1, estimatePage(0, 600, 4))
	assert.Equal(t, 2, estimatePage(225, 600, 4))
	assert.Equal(t, 4, estimatePage(450, 600, 4))
	assert.Equal(t, 4, estimatePage(599, 600, 4))

	// Clamps and degenerate inputs.
	assert.Equal(t, 1, estimatePage(0, 0, 4))
	assert.Equal(t, 1, estimatePage(10, 100, 0))
}
