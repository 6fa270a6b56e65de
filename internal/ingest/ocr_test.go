package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/vectorstore"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

// stubRasterizer stands in for pdftoppm: it copies a pre-rendered PNG to
// the output prefix, ignoring the PDF it was given.
func stubRasterizer(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "source.png")
	require.NoError(t, imaging.Save(grayImage(4, 4, 255), src))
	body := fmt.Sprintf("#!/bin/sh\nfor last in \"$@\"; do :; done\ncp %q \"$last.png\"\n", src)
	return writeScript(t, dir, "pdftoppm", body)
}

// stubTesseract stands in for tesseract: it appends the requested page
// segmentation mode to logPath, then runs body.
func stubTesseract(t *testing.T, dir, logPath, body string) string {
	t.Helper()
	script := fmt.Sprintf("#!/bin/sh\necho \"$4\" >> %q\n%s\n", logPath, body)
	return writeScript(t, dir, "tesseract", script)
}

func recordedModes(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func newStubOCREngine(t *testing.T, tesseractBody string) (*OCREngine, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	engine, err := NewOCREngine(OCRConfig{
		TesseractPath: stubTesseract(t, dir, logPath, tesseractBody),
		PdftoppmPath:  stubRasterizer(t, dir),
		DPI:           72,
	}, logging.NewNop())
	require.NoError(t, err)
	return engine, logPath
}

func TestOCREngine_SecondarySegmentationFallback(t *testing.T) {
	engine, logPath := newStubOCREngine(t, `if [ "$4" = "3" ]; then
  echo "segmentation failed" >&2
  exit 1
fi
echo "settlement agreement recovered"`)

	text, err := engine.RecognizePage(context.Background(), "ignored.pdf", 1)
	require.NoError(t, err)

	assert.Equal(t, "settlement agreement recovered", text)
	assert.Equal(t, []string{"3", "1"}, recordedModes(t, logPath))
}

func TestOCREngine_BlankPageNotRetried(t *testing.T) {
	engine, logPath := newStubOCREngine(t, "exit 0")

	text, err := engine.RecognizePage(context.Background(), "ignored.pdf", 1)
	require.NoError(t, err)

	// An empty result from a successful run is a blank page; only the
	// primary mode runs.
	assert.Empty(t, text)
	assert.Equal(t, []string{"3"}, recordedModes(t, logPath))
}

func TestOCREngine_BothModesFail(t *testing.T) {
	engine, logPath := newStubOCREngine(t, `echo "no text detected" >&2
exit 1`)

	_, err := engine.RecognizePage(context.Background(), "ignored.pdf", 1)
	require.Error(t, err)
	assert.Equal(t, []string{"3", "1"}, recordedModes(t, logPath))
}

func TestService_IngestPDF_OCRRecoversPage(t *testing.T) {
	engine, _ := newStubOCREngine(t, `if [ "$4" = "3" ]; then
  exit 1
fi
echo "scanned addendum text"`)

	svc, _, _ := newTestService(t, []Page{
		pageWithWords(1, 12),
		{Number: 2},
	})
	svc.ocr = engine
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	result, err := svc.IngestPDF(ctx, "ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	assert.True(t, result.OCRUsed)
	assert.Equal(t, 1, result.OCRPages)
	assert.Equal(t, 2, result.TotalPages)
}

func TestService_IngestPDF_OCRFailureSkipsPage(t *testing.T) {
	engine, _ := newStubOCREngine(t, "exit 1")

	svc, _, _ := newTestService(t, []Page{
		pageWithWords(1, 12),
		{Number: 2},
	})
	svc.ocr = engine
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	// The failed page contributes nothing but the document still lands.
	result, err := svc.IngestPDF(ctx, "ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	assert.False(t, result.OCRUsed)
	assert.Zero(t, result.OCRPages)
	assert.Equal(t, 2, result.TotalPages)
}

func TestService_IngestPDF_BlankScanCounted(t *testing.T) {
	engine, _ := newStubOCREngine(t, "exit 0")

	svc, _, _ := newTestService(t, []Page{
		pageWithWords(1, 12),
		{Number: 2},
	})
	svc.ocr = engine
	ctx := vectorstore.ContextWithOwner(context.Background(), "alice")

	result, err := svc.IngestPDF(ctx, "ignored.pdf", "lease.pdf")
	require.NoError(t, err)

	// OCR ran and succeeded on a genuinely blank scan; the page counts
	// toward provenance even though it yielded no text.
	assert.True(t, result.OCRUsed)
	assert.Equal(t, 1, result.OCRPages)
}
