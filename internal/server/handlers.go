package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/ingest"
	"github.com/caselight/caselight/internal/search"
	"github.com/caselight/caselight/internal/settings"
	"github.com/caselight/caselight/internal/vectorstore"
)

// healthResponse is the JSON response for GET /health.
type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	TotalChunks int    `json:"total_chunks"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", Service: "caselightd"}
	count, err := s.registry.VectorStore().Count(c.Request().Context())
	if err != nil {
		// The daemon is still serving; report degraded instead of failing.
		resp.Status = "degraded"
	} else {
		resp.TotalChunks = count
	}
	return c.JSON(http.StatusOK, resp)
}

// uploadResponse is the JSON response for POST /upload.
type uploadResponse struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	Message     string `json:"message"`
	OCRUsed     bool   `json:"ocr_used"`
	OCRPages    int    `json:"ocr_pages"`
	TotalPages  int    `json:"total_pages"`
}

func (s *Server) handleUpload(c echo.Context) error {
	ctx := c.Request().Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	filename := filepath.Base(fileHeader.Filename)
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return echo.NewHTTPError(http.StatusBadRequest, "Only PDF files are supported")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	path := filepath.Join(s.config.UploadDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("writing upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("writing upload: %w", err)
	}

	result, err := s.registry.Ingest().IngestPDF(ctx, path, filename)
	if err != nil {
		if errors.Is(err, ingest.ErrNoExtractableText) || errors.Is(err, ingest.ErrNotPDF) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error(ctx, "upload failed", zap.String("filename", filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error processing document")
	}

	return c.JSON(http.StatusOK, uploadResponse{
		DocumentID:  result.DocumentID,
		Filename:    result.Filename,
		TotalChunks: result.TotalChunks,
		Message:     fmt.Sprintf("Successfully indexed %s into %d chunks", result.Filename, result.TotalChunks),
		OCRUsed:     result.OCRUsed,
		OCRPages:    result.OCRPages,
		TotalPages:  result.TotalPages,
	})
}

// searchRequest is the JSON body for POST /search.
type searchRequest struct {
	Query            string `json:"query"`
	TopK             int    `json:"top_k"`
	UseReranking     *bool  `json:"use_reranking"`
	SynthesizeAnswer bool   `json:"synthesize_answer"`
}

// searchResponse is the JSON response for POST /search.
type searchResponse struct {
	Query             string          `json:"query"`
	Results           []search.Result `json:"results"`
	TotalResults      int             `json:"total_results"`
	Reranked          bool            `json:"reranked"`
	SynthesizedAnswer *string         `json:"synthesized_answer,omitempty"`
}

func (s *Server) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()

	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	rerank := true
	if req.UseReranking != nil {
		rerank = *req.UseReranking
	}

	resp, err := s.registry.Search().Search(ctx, req.Query, req.TopK, rerank)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error(ctx, "search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error performing search")
	}

	out := searchResponse{
		Query:        req.Query,
		Results:      resp.Results,
		TotalResults: len(resp.Results),
		Reranked:     resp.Reranked,
	}
	if req.SynthesizeAnswer && len(resp.Results) > 0 {
		answer := s.registry.Synthesizer().Synthesize(ctx, req.Query, resp.Results)
		out.SynthesizedAnswer = &answer
	}
	return c.JSON(http.StatusOK, out)
}

// documentListResponse is the JSON response for GET /documents.
type documentListResponse struct {
	Documents      interface{} `json:"documents"`
	TotalDocuments int         `json:"total_documents"`
}

func (s *Server) handleListDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFromRequest(c)
	if err != nil {
		return err
	}

	docs, err := s.registry.Catalog().List(ctx, owner)
	if err != nil {
		s.logger.Error(ctx, "listing documents failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error listing documents")
	}
	return c.JSON(http.StatusOK, documentListResponse{Documents: docs, TotalDocuments: len(docs)})
}

// deleteResponse is the JSON response for DELETE /documents/:id.
type deleteResponse struct {
	Message       string `json:"message"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()
	documentID := c.Param("id")

	removed, err := s.registry.Ingest().DeleteDocument(ctx, documentID)
	if err != nil {
		s.logger.Error(ctx, "delete failed", zap.String("document_id", documentID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error deleting document")
	}
	if removed == 0 {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Document %s not found", documentID))
	}

	return c.JSON(http.StatusOK, deleteResponse{
		Message:       fmt.Sprintf("Successfully deleted document %s", documentID),
		ChunksDeleted: removed,
	})
}

func (s *Server) handleGetSettings(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFromRequest(c)
	if err != nil {
		return err
	}

	prefs, err := s.registry.Settings().Get(ctx, owner)
	if err != nil {
		s.logger.Error(ctx, "loading settings failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error loading settings")
	}
	return c.JSON(http.StatusOK, prefs)
}

func (s *Server) handleSaveSettings(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFromRequest(c)
	if err != nil {
		return err
	}

	var prefs settings.Settings
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	saved, err := s.registry.Settings().Save(ctx, owner, prefs)
	if err != nil {
		s.logger.Error(ctx, "saving settings failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error saving settings")
	}
	return c.JSON(http.StatusOK, saved)
}

func ownerFromRequest(c echo.Context) (string, error) {
	owner, err := vectorstore.OwnerFromContext(c.Request().Context())
	if err != nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing owner")
	}
	return owner, nil
}
