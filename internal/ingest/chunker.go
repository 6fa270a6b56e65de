package ingest

import (
	"strings"
)

// Chunk is one word window of a document.
type Chunk struct {
	// Ordinal is the chunk's 0-indexed position in the document.
	Ordinal int
	// Text is the window content, words joined by single spaces.
	Text string
	// WordOffset is the index of the window's first word in the document.
	WordOffset int
	// Page is the estimated 1-indexed source page.
	Page int
}

// Chunker splits document text into overlapping word windows.
type Chunker struct {
	// Size is the window length in words.
	Size int
	// Overlap is how many words consecutive windows share.
	Overlap int
}

// NewChunker creates a Chunker. Overlap must be smaller than size.
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into windows of Size words advancing by Size-Overlap.
// Every start offset below the word count emits a window, so trailing
// windows may be short, down to holding only the words shared with the
// previous window. Each chunk carries an estimated page computed from its
// word offset, assuming words distribute evenly over totalPages.
//
// Whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string, totalPages int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.Size - c.Overlap
	chunks := make([]Chunk, 0, (len(words)+step-1)/step)
	for offset := 0; offset < len(words); offset += step {
		end := offset + c.Size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Ordinal:    len(chunks),
			Text:       strings.Join(words[offset:end], " "),
			WordOffset: offset,
			Page:       estimatePage(offset, len(words), totalPages),
		})
	}
	return chunks
}

// estimatePage maps a word offset to a 1-indexed page by linear
// interpolation over the document's word count.
func estimatePage(offset, totalWords, totalPages int) int {
	if totalWords == 0 || totalPages <= 0 {
		return 1
	}
	page := offset*totalPages/totalWords + 1
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}
