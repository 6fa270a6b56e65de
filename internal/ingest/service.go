package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/catalog"
	"github.com/caselight/caselight/internal/embeddings"
	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/vectorstore"
)

var tracer = otel.Tracer("caselight.ingest")

// Config holds ingest pipeline settings.
type Config struct {
	// ChunkSize is the word-window size. Default: 250.
	ChunkSize int
	// ChunkOverlap is the word overlap between windows. Default: 25.
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 250
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 25
	}
}

// Result summarizes one ingested document.
type Result struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	TotalPages  int    `json:"total_pages"`
	OCRUsed     bool   `json:"ocr_used"`
	OCRPages    int    `json:"ocr_pages"`
}

// PageExtractor recovers per-page text from a PDF on disk.
type PageExtractor interface {
	ExtractPages(path string) ([]Page, error)
}

// Service runs the ingest pipeline: extract, OCR fallback, chunk, embed,
// index, catalog.
type Service struct {
	config    Config
	extractor PageExtractor
	ocr       *OCREngine // nil disables the OCR fallback
	embedder  embeddings.Provider
	store     vectorstore.Store
	catalog   *catalog.Catalog
	logger    *logging.Logger

	now func() time.Time
}

// NewService creates an ingest Service. ocr may be nil, in which case
// pages without a text layer contribute nothing.
func NewService(config Config, extractor PageExtractor, ocr *OCREngine, embedder embeddings.Provider, store vectorstore.Store, cat *catalog.Catalog, logger *logging.Logger) *Service {
	config.ApplyDefaults()
	return &Service{
		config:    config,
		extractor: extractor,
		ocr:       ocr,
		embedder:  embedder,
		store:     store,
		catalog:   cat,
		logger:    logger,
		now:       time.Now,
	}
}

// IngestPDF processes the PDF at path under the context's owner and
// returns the ingest summary. The whole document either lands in the
// index or the call fails; there is no partial ingest.
func (s *Service) IngestPDF(ctx context.Context, path, filename string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Service.IngestPDF")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	uploaded := s.now().UTC()
	docID := newDocumentID(filename, uploaded)

	pages, err := s.extractor.ExtractPages(path)
	if err != nil {
		return nil, err
	}

	ocrPages := 0
	for i := range pages {
		if pages[i].Text != "" || s.ocr == nil {
			continue
		}
		text, err := s.ocr.RecognizePage(ctx, path, pages[i].Number)
		if err != nil {
			// One bad scan must not sink the document.
			s.logger.Warn(ctx, "ocr failed for page",
				zap.String("document_id", docID),
				zap.Int("page", pages[i].Number),
				zap.Error(err))
			continue
		}
		// A successful OCR run counts even when the scan was blank;
		// the count reports provenance, not yield.
		pages[i].Text = text
		pages[i].OCR = true
		ocrPages++
	}

	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	fullText := strings.Join(texts, "\n")

	chunker := NewChunker(s.config.ChunkSize, s.config.ChunkOverlap)
	chunks := chunker.Chunk(fullText, len(pages))
	if len(chunks) == 0 {
		return nil, ErrNoExtractableText
	}

	chunkTexts := make([]string, len(chunks))
	for i, c := range chunks {
		chunkTexts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, chunkTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, c.Ordinal)
		docs[i] = vectorstore.Document{
			ID:      chunkID,
			Content: c.Text,
			Vector:  vectors[i],
			Metadata: vectorstore.Metadata{
				ChunkID:     chunkID,
				DocumentID:  docID,
				Filename:    filename,
				Page:        c.Page,
				Ordinal:     c.Ordinal,
				TotalChunks: len(chunks),
				OCRUsed:     ocrPages > 0,
				OCRPages:    ocrPages,
				TotalPages:  len(pages),
				UploadDate:  uploaded,
			},
		}
	}

	if err := s.store.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("indexing chunks: %w", err)
	}

	if s.catalog != nil {
		owner, err := vectorstore.OwnerFromContext(ctx)
		if err != nil {
			return nil, err
		}
		entry := catalog.Document{
			DocumentID:  docID,
			OwnerID:     owner,
			Filename:    filename,
			TotalChunks: len(chunks),
			TotalPages:  len(pages),
			OCRUsed:     ocrPages > 0,
			OCRPages:    ocrPages,
			UploadDate:  uploaded,
		}
		if err := s.catalog.Record(ctx, entry); err != nil {
			return nil, err
		}
	}

	s.logger.Info(ctx, "document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
		zap.Int("pages", len(pages)),
		zap.Int("ocr_pages", ocrPages))

	span.SetAttributes(
		attribute.String("document_id", docID),
		attribute.Int("chunks", len(chunks)),
	)

	return &Result{
		DocumentID:  docID,
		Filename:    filename,
		TotalChunks: len(chunks),
		TotalPages:  len(pages),
		OCRUsed:     ocrPages > 0,
		OCRPages:    ocrPages,
	}, nil
}

// DeleteDocument removes a document's chunks and catalog entry scoped to
// the context's owner. Returns the number of chunks removed.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Service.DeleteDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	removed, err := s.store.DeleteWhere(ctx, vectorstore.Filter{DocumentID: documentID})
	if err != nil {
		return 0, err
	}

	if s.catalog != nil {
		owner, err := vectorstore.OwnerFromContext(ctx)
		if err != nil {
			return removed, err
		}
		if _, err := s.catalog.Delete(ctx, owner, documentID); err != nil {
			return removed, err
		}
	}

	s.logger.Info(ctx, "document deleted",
		zap.String("document_id", documentID),
		zap.Int("chunks_removed", removed))
	return removed, nil
}

// newDocumentID derives a short stable id from the filename and upload
// time. Twelve hex characters of md5 keeps ids readable in chunk ids and
// citations while staying unique per upload.
func newDocumentID(filename string, uploaded time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", filename, uploaded.UnixNano())))
	return hex.EncodeToString(sum[:])[:12]
}
