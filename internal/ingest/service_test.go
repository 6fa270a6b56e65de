package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/caselight/caselight/internal/catalog"
	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/vectorstore"
)

// stubExtractor returns canned pages.
type stubExtractor struct {
	pages []Page
	err   error
}

func (s *stubExtractor) ExtractPages(string) ([]Page, error) {
	return s.pages, s.err
}

// stubEmbedder returns deterministic unit vectors.
type stubEmbedder struct {
	dim int
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, s.dim)
		vec[i%s.dim] = 1
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	vec := make([]float32, s.dim)
	vec[0] = 1
	return vec, nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }
func (s *stubEmbedder) Close() error   { return nil }

func newTestService(t *testing.T, pages []Page) (*Service, vectorstore.Store, *catalog.Catalog) {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		CollectionName: "test_documents",
		VectorSize:     4,
	})
	require.NoError(t, err)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := catalog.New(context.Background(), db)
	require.NoError(t, err)

	svc := NewService(Config{ChunkSize: 10, ChunkOverlap: 2},
		&stubExtractor{pages: pages},
		nil,
		&stubEmbedder{dim: 4},
		store, cat, logging.NewNop())
	return svc, store, cat
}

func pageWithWords(number, count int) Page {
	text := ""
	for i := 0; i < count; i++ {
		if i > 0 {
			text += " "
		}
		text += fmt.Sprintf("p%dw%d", number, i)
	}
	return Page{Number: number, Text: text}
}

func TestService_IngestPDF(t *testing.T) {
	svc, store, cat := newTestService(t, []Page{
		pageWithWords(1, 12),
		pageWithWords(2, 12),
	})
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	result, err := svc.IngestPDF(ctx, "/tmp/ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	assert.Len(t, result.DocumentID, 12)
	assert.Equal(t, "lease.pdf", result.Filename)
	assert.Equal(t, 2, result.TotalPages)
	assert.False(t, result.OCRUsed)
	// 24 words, windows of 10 advancing by 8: offsets 0, 8, 16.
	assert.Equal(t, 3, result.TotalChunks)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Chunk metadata carries the ingest summary.
	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 1, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	meta := results[0].Metadata
	assert.Equal(t, result.DocumentID, meta.DocumentID)
	assert.Equal(t, fmt.Sprintf("%s_chunk_%d", result.DocumentID, meta.Ordinal), meta.ChunkID)
	assert.Equal(t, 3, meta.TotalChunks)
	assert.Equal(t, "lease.pdf", meta.Filename)

	// Catalog entry recorded.
	docs, err := cat.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, result.DocumentID, docs[0].DocumentID)
	assert.Equal(t, 3, docs[0].TotalChunks)
}

func TestService_IngestPDF_NoText(t *testing.T) {
	svc, _, _ := newTestService(t, []Page{{Number: 1}, {Number: 2}})
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	_, err := svc.IngestPDF(ctx, "/tmp/ignored.pdf", "scanned.pdf")
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestService_IngestPDF_ExtractorFailure(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	svc.extractor = &stubExtractor{err: ErrNotPDF}
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	_, err := svc.IngestPDF(ctx, "/tmp/ignored.pdf", "bogus.txt")
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestService_IngestPDF_RequiresOwner(t *testing.T) {
	svc, _, _ := newTestService(t, []Page{pageWithWords(1, 12)})

	_, err := svc.IngestPDF(context.Background(), "/tmp/ignored.pdf", "lease.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, vectorstore.ErrMissingOwner))
}

func TestService_DeleteDocument(t *testing.T) {
	svc, store, cat := newTestService(t, []Page{pageWithWords(1, 12)})
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	result, err := svc.IngestPDF(ctx, "/tmp/ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	removed, err := svc.DeleteDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, result.TotalChunks, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	docs, err := cat.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestService_DeleteDocument_OtherOwner(t *testing.T) {
	svc, store, _ := newTestService(t, []Page{pageWithWords(1, 12)})
	aliceCtx := vectorstore.ContextWithOwner(context.Background(), "alice")
	bobCtx := vectorstore.ContextWithOwner(context.Background(), "bob")

	result, err := svc.IngestPDF(aliceCtx, "/tmp/ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	// Bob cannot delete Alice's document.
	removed, err := svc.DeleteDocument(bobCtx, result.DocumentID)
	require.NoError(t, err)
	assert.Zero(t, removed)

	count, err := store.Count(aliceCtx)
	require.NoError(t, err)
	assert.Equal(t, result.TotalChunks, count)
}

func TestNewDocumentID_Distinct(t *testing.T) {
	svc, _, _ := newTestService(t, []Page{pageWithWords(1, 12)})
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	first, err := svc.IngestPDF(ctx, "/tmp/ignored.pdf", "lease.pdf")
	require.NoError(t, err)
	second, err := svc.IngestPDF(ctx, "/tmp/ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	// Re-uploading the same filename yields a new document.
	assert.NotEqual(t, first.DocumentID, second.DocumentID)
}
