package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/logging"
)

// OCRConfig holds OCR engine settings.
type OCRConfig struct {
	// TesseractPath is the tesseract binary. Default: "tesseract"
	TesseractPath string

	// PdftoppmPath is the poppler rasterizer binary. Default: "pdftoppm"
	PdftoppmPath string

	// DPI is the rasterization resolution. Default: 300.
	DPI int

	// Timeout bounds each external command. Default: 2m.
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *OCRConfig) ApplyDefaults() {
	if c.TesseractPath == "" {
		c.TesseractPath = "tesseract"
	}
	if c.PdftoppmPath == "" {
		c.PdftoppmPath = "pdftoppm"
	}
	if c.DPI == 0 {
		c.DPI = 300
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
}

// OCREngine recovers text from scanned PDF pages by shelling out to
// poppler and tesseract.
type OCREngine struct {
	config OCRConfig
	logger *logging.Logger
}

// NewOCREngine creates an OCREngine. Returns an error when either
// external binary is missing so the fallback can be disabled up front.
func NewOCREngine(config OCRConfig, logger *logging.Logger) (*OCREngine, error) {
	config.ApplyDefaults()
	if _, err := exec.LookPath(config.PdftoppmPath); err != nil {
		return nil, fmt.Errorf("pdftoppm not available: %w", err)
	}
	if _, err := exec.LookPath(config.TesseractPath); err != nil {
		return nil, fmt.Errorf("tesseract not available: %w", err)
	}
	return &OCREngine{config: config, logger: logger}, nil
}

// RecognizePage rasterizes one page of the PDF and runs it through
// tesseract. Returns the recognized text, which may be empty for a
// genuinely blank page.
func (o *OCREngine) RecognizePage(ctx context.Context, pdfPath string, pageNum int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "caselight-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imgPath, err := o.rasterize(ctx, pdfPath, pageNum, tmpDir)
	if err != nil {
		return "", err
	}

	img, err := imaging.Open(imgPath)
	if err != nil {
		return "", fmt.Errorf("opening rasterized page: %w", err)
	}
	enhancedPath := filepath.Join(tmpDir, "enhanced.png")
	if err := imaging.Save(enhanceForOCR(img), enhancedPath); err != nil {
		return "", fmt.Errorf("saving enhanced page: %w", err)
	}

	// Automatic page segmentation first; fall back to full automatic
	// with orientation detection only when the primary call fails. An
	// empty result from a successful run means a blank page, not a
	// reason to retry.
	text, err := o.tesseract(ctx, enhancedPath, "3")
	if err != nil {
		o.logger.Warn(ctx, "tesseract psm 3 failed, retrying with psm 1",
			zap.Int("page", pageNum), zap.Error(err))
		text, err = o.tesseract(ctx, enhancedPath, "1")
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(text), nil
}

// rasterize renders a single page to PNG and returns the output path.
func (o *OCREngine) rasterize(ctx context.Context, pdfPath string, pageNum int, tmpDir string) (string, error) {
	prefix := filepath.Join(tmpDir, "page")
	page := strconv.Itoa(pageNum)
	cmd := exec.CommandContext(ctx, o.config.PdftoppmPath,
		"-f", page, "-l", page,
		"-r", strconv.Itoa(o.config.DPI),
		"-png", "-singlefile",
		pdfPath, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %v, stderr: %s", pageNum, err, stderr.String())
	}
	return prefix + ".png", nil
}

// tesseract runs OCR on the image with the given page segmentation mode.
func (o *OCREngine) tesseract(ctx context.Context, imgPath, psm string) (string, error) {
	cmd := exec.CommandContext(ctx, o.config.TesseractPath, imgPath, "stdout", "--psm", psm)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract psm %s: %v, stderr: %s", psm, err, stderr.String())
	}
	return stdout.String(), nil
}
