package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("caselight.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the
	// store in memory (tests).
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool

	// CollectionName is the collection all operations target.
	// Default: "legal_documents"
	CollectionName string

	// VectorSize is the embedding dimension. MUST match the embedder's
	// output for the lifetime of the collection.
	VectorSize int

	// Isolation is the owner isolation mode.
	// Default: PayloadIsolation for fail-closed security.
	Isolation IsolationMode
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.CollectionName == "" {
		c.CollectionName = "legal_documents"
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database. It serves single-node deployments and tests; no
// external service required.
type ChromemStore struct {
	db        *chromem.DB
	coll      *chromem.Collection
	config    ChromemConfig
	isolation IsolationMode

	// deleteMu serializes deletes so the removed count derived from the
	// collection size is accurate.
	deleteMu sync.Mutex
}

// NewChromemStore creates a ChromemStore, persistent when config.Path is
// set, in-memory otherwise.
func NewChromemStore(config ChromemConfig) (*ChromemStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	var err error
	if config.Path != "" {
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", config.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are always supplied by the caller; the embedding func
	// must never be invoked.
	coll, err := db.GetOrCreateCollection(config.CollectionName, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", config.CollectionName, err)
	}

	isolation := config.Isolation
	if isolation == nil {
		isolation = NewPayloadIsolation()
	}

	return &ChromemStore{
		db:        db,
		coll:      coll,
		config:    config,
		isolation: isolation,
	}, nil
}

// rejectEmbeddingFunc guards against accidental in-store embedding.
func rejectEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("store does not embed; supply vectors explicitly")
}

// Close is a no-op; chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}

// IsolationMode returns the store's isolation mode.
func (s *ChromemStore) IsolationMode() IsolationMode {
	return s.isolation
}

// Upsert writes documents in one batch. A duplicate id overwrites.
func (s *ChromemStore) Upsert(ctx context.Context, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.config.CollectionName),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	if err := s.isolation.InjectMetadata(ctx, docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("injecting owner metadata: %w", err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Vector) != s.config.VectorSize {
			err := fmt.Errorf("%w: got %d, collection expects %d", ErrDimensionMismatch, len(doc.Vector), s.config.VectorSize)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  encodeChromemMetadata(doc.Metadata),
			Embedding: doc.Vector,
		}
	}

	// Concurrency of 1: embeddings are precomputed, nothing to parallelize.
	if err := s.coll.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns up to k nearest neighbors by cosine distance, conjoined
// with the context's owner scope.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: got %d, collection expects %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	scoped, err := s.isolation.InjectFilter(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("injecting owner filter: %w", err)
	}

	// chromem requires nResults <= document count.
	docCount := s.coll.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := s.coll.QueryEmbedding(ctx, vector, k, encodeChromemFilter(scoped), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.CollectionName, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:      r.ID,
			Content: r.Content,
			// chromem reports cosine similarity; the Store contract
			// is raw cosine distance.
			Distance: 1 - r.Similarity,
			Metadata: decodeChromemMetadata(r.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// DeleteWhere removes all entries matching the filter conjoined with the
// owner scope and returns the number removed.
func (s *ChromemStore) DeleteWhere(ctx context.Context, filter Filter) (int, error) {
	scoped, err := s.isolation.InjectFilter(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("injecting owner filter: %w", err)
	}
	return s.deleteMatching(ctx, scoped)
}

// DeleteWhereGlobal removes all entries matching the filter with no owner
// conjunction. Distinct, intentionally more permissive code path.
func (s *ChromemStore) DeleteWhereGlobal(ctx context.Context, filter Filter) (int, error) {
	if filter.IsZero() {
		return 0, ErrEmptyFilter
	}
	return s.deleteMatching(ctx, filter)
}

func (s *ChromemStore) deleteMatching(ctx context.Context, filter Filter) (int, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteWhere")
	defer span.End()

	span.SetAttributes(attribute.String("collection", s.config.CollectionName))

	s.deleteMu.Lock()
	defer s.deleteMu.Unlock()

	before := s.coll.Count()
	if err := s.coll.Delete(ctx, encodeChromemFilter(filter), nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting from collection %s: %w", s.config.CollectionName, err)
	}
	removed := before - s.coll.Count()

	span.SetAttributes(attribute.Int("deleted_count", removed))
	span.SetStatus(codes.Ok, "success")
	return removed, nil
}

// Count returns the total number of entries in the collection.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()
	return s.coll.Count(), nil
}

// encodeChromemMetadata translates the fixed metadata schema to chromem's
// string map.
func encodeChromemMetadata(m Metadata) map[string]string {
	return map[string]string{
		payloadChunkID:     m.ChunkID,
		payloadDocumentID:  m.DocumentID,
		payloadOwnerID:     m.OwnerID,
		payloadFilename:    m.Filename,
		payloadPage:        strconv.Itoa(m.Page),
		payloadOrdinal:     strconv.Itoa(m.Ordinal),
		payloadTotalChunks: strconv.Itoa(m.TotalChunks),
		payloadOCRUsed:     strconv.FormatBool(m.OCRUsed),
		payloadOCRPages:    strconv.Itoa(m.OCRPages),
		payloadTotalPages:  strconv.Itoa(m.TotalPages),
		payloadUploadDate:  m.UploadDate.UTC().Format(time.RFC3339Nano),
	}
}

// decodeChromemMetadata translates chromem's string map back to the fixed
// schema.
func decodeChromemMetadata(meta map[string]string) Metadata {
	num := func(key string) int {
		n, _ := strconv.Atoi(meta[key])
		return n
	}
	m := Metadata{
		ChunkID:     meta[payloadChunkID],
		DocumentID:  meta[payloadDocumentID],
		OwnerID:     meta[payloadOwnerID],
		Filename:    meta[payloadFilename],
		Page:        num(payloadPage),
		Ordinal:     num(payloadOrdinal),
		TotalChunks: num(payloadTotalChunks),
		OCRUsed:     meta[payloadOCRUsed] == "true",
		OCRPages:    num(payloadOCRPages),
		TotalPages:  num(payloadTotalPages),
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[payloadUploadDate]); err == nil {
		m.UploadDate = ts
	}
	return m
}

// encodeChromemFilter translates a Filter to a chromem where map.
func encodeChromemFilter(f Filter) map[string]string {
	if f.IsZero() {
		return nil
	}
	where := make(map[string]string, 2)
	if f.OwnerID != "" {
		where[payloadOwnerID] = f.OwnerID
	}
	if f.DocumentID != "" {
		where[payloadDocumentID] = f.DocumentID
	}
	return where
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
