// Package ingest turns uploaded PDFs into embedded, indexed chunks.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotPDF indicates the file is not a readable PDF
	ErrNotPDF = errors.New("file is not a readable PDF")

	// ErrNoExtractableText indicates no text could be recovered from any page
	ErrNoExtractableText = errors.New("no extractable text in document")
)

// maxPDFBytes caps in-memory extraction.
const maxPDFBytes = 200 << 20

// Page holds the recovered text of one PDF page.
type Page struct {
	// Number is 1-indexed.
	Number int
	// Text is the page's text layer, empty when the page has none.
	Text string
	// OCR reports whether the text came from the OCR fallback.
	OCR bool
}

// Extractor pulls the text layer out of PDF files page by page.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages reads the PDF at path and returns one Page per document
// page, in order. A page whose text layer cannot be parsed yields an
// empty Text rather than failing the whole document; the OCR fallback
// decides what to do with it.
func (e *Extractor) ExtractPages(path string) ([]Page, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}
	if stat.Size() > maxPDFBytes {
		return nil, fmt.Errorf("pdf too large for in-memory extraction (%d bytes)", stat.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := Page{Number: i}
		page := reader.Page(i)
		if !page.V.IsNull() {
			fonts := make(map[string]*pdf.Font)
			text, err := page.GetPlainText(fonts)
			if err == nil {
				p.Text = strings.TrimSpace(text)
			}
		}
		pages = append(pages, p)
	}
	return pages, nil
}
