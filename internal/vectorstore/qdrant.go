package vectorstore

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("caselight.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Payload keys for the fixed chunk metadata schema.
const (
	payloadContent     = "content"
	payloadChunkID     = "chunk_id"
	payloadDocumentID  = "document_id"
	payloadOwnerID     = "owner_id"
	payloadFilename    = "filename"
	payloadPage        = "page"
	payloadOrdinal     = "ordinal"
	payloadTotalChunks = "total_chunks"
	payloadOCRUsed     = "ocr_used"
	payloadOCRPages    = "ocr_pages"
	payloadTotalPages  = "total_pages"
	payloadUploadDate  = "upload_date"
)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// CollectionName is the collection all operations target.
	CollectionName string

	// VectorSize is the embedding dimension. MUST match the embedder's
	// output for the lifetime of the collection.
	VectorSize uint64

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (to handle large upload batches).
	MaxMessageSize int

	// Isolation is the owner isolation mode.
	// Default: PayloadIsolation for fail-closed security.
	Isolation IsolationMode
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if !collectionNamePattern.MatchString(c.CollectionName) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidConfig, c.CollectionName)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// Index failures are fatal to the current request and surface directly;
// the adapter performs no internal retries.
type QdrantStore struct {
	client    *qdrant.Client
	config    QdrantConfig
	isolation IsolationMode
}

// NewQdrantStore creates a QdrantStore, verifies connectivity, and ensures
// the configured collection exists with cosine distance.
func NewQdrantStore(ctx context.Context, config QdrantConfig) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant gRPC using plaintext (TLS disabled). Insecure for production.\n")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	isolation := config.Isolation
	if isolation == nil {
		isolation = NewPayloadIsolation()
	}

	store := &QdrantStore{
		client:    client,
		config:    config,
		isolation: isolation,
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.CollectionName)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.CollectionName, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.CollectionName, err)
	}
	return nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// IsolationMode returns the store's isolation mode.
func (s *QdrantStore) IsolationMode() IsolationMode {
	return s.isolation
}

// Upsert writes documents in one batch. A duplicate id overwrites.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
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

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		if uint64(len(doc.Vector)) != s.config.VectorSize {
			err := fmt.Errorf("%w: got %d, collection expects %d", ErrDimensionMismatch, len(doc.Vector), s.config.VectorSize)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		points[i] = &qdrant.PointStruct{
			// Deterministic point id so re-upserting a chunk id
			// overwrites instead of duplicating.
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(doc.ID)).String()),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: encodePayload(doc),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.CollectionName,
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", s.config.CollectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns up to k nearest neighbors by cosine distance, conjoined
// with the context's owner scope.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if uint64(len(vector)) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: got %d, collection expects %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	scoped, err := s.isolation.InjectFilter(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("injecting owner filter: %w", err)
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         encodeFilter(scoped),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.CollectionName, err)
	}

	results := make([]SearchResult, len(points))
	for i, point := range points {
		// Qdrant reports cosine similarity; the Store contract is raw
		// cosine distance.
		results[i] = SearchResult{
			Distance: 1 - point.Score,
		}
		decodePayload(point.Payload, &results[i])
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// DeleteWhere removes all entries matching the filter conjoined with the
// owner scope and returns the number removed.
func (s *QdrantStore) DeleteWhere(ctx context.Context, filter Filter) (int, error) {
	scoped, err := s.isolation.InjectFilter(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("injecting owner filter: %w", err)
	}
	return s.deleteMatching(ctx, scoped)
}

// DeleteWhereGlobal removes all entries matching the filter with no owner
// conjunction. Distinct, intentionally more permissive code path.
func (s *QdrantStore) DeleteWhereGlobal(ctx context.Context, filter Filter) (int, error) {
	if filter.IsZero() {
		return 0, ErrEmptyFilter
	}
	return s.deleteMatching(ctx, filter)
}

func (s *QdrantStore) deleteMatching(ctx context.Context, filter Filter) (int, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteWhere")
	defer span.End()

	span.SetAttributes(attribute.String("collection", s.config.CollectionName))

	qf := encodeFilter(filter)

	matched, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.CollectionName,
		Filter:         qf,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting matches in collection %s: %w", s.config.CollectionName, err)
	}
	if matched == 0 {
		span.SetStatus(codes.Ok, "no matches")
		return 0, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.CollectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qf},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting from collection %s: %w", s.config.CollectionName, err)
	}

	span.SetAttributes(attribute.Int("deleted_count", int(matched)))
	span.SetStatus(codes.Ok, "success")
	return int(matched), nil
}

// Count returns the total number of entries in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Count")
	defer span.End()

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.CollectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting collection %s: %w", s.config.CollectionName, err)
	}
	span.SetStatus(codes.Ok, "success")
	return int(count), nil
}

// encodePayload translates the fixed metadata schema to a Qdrant payload.
func encodePayload(doc Document) map[string]*qdrant.Value {
	m := doc.Metadata
	return map[string]*qdrant.Value{
		payloadContent:     {Kind: &qdrant.Value_StringValue{StringValue: doc.Content}},
		payloadChunkID:     {Kind: &qdrant.Value_StringValue{StringValue: m.ChunkID}},
		payloadDocumentID:  {Kind: &qdrant.Value_StringValue{StringValue: m.DocumentID}},
		payloadOwnerID:     {Kind: &qdrant.Value_StringValue{StringValue: m.OwnerID}},
		payloadFilename:    {Kind: &qdrant.Value_StringValue{StringValue: m.Filename}},
		payloadPage:        {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(m.Page)}},
		payloadOrdinal:     {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(m.Ordinal)}},
		payloadTotalChunks: {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(m.TotalChunks)}},
		payloadOCRUsed:     {Kind: &qdrant.Value_BoolValue{BoolValue: m.OCRUsed}},
		payloadOCRPages:    {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(m.OCRPages)}},
		payloadTotalPages:  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(m.TotalPages)}},
		payloadUploadDate:  {Kind: &qdrant.Value_StringValue{StringValue: m.UploadDate.UTC().Format(time.RFC3339Nano)}},
	}
}

// decodePayload translates a Qdrant payload back into a SearchResult.
func decodePayload(payload map[string]*qdrant.Value, result *SearchResult) {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
				return s.StringValue
			}
		}
		return ""
	}
	num := func(key string) int {
		if v, ok := payload[key]; ok {
			if n, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
				return int(n.IntegerValue)
			}
		}
		return 0
	}
	boolean := func(key string) bool {
		if v, ok := payload[key]; ok {
			if b, ok := v.Kind.(*qdrant.Value_BoolValue); ok {
				return b.BoolValue
			}
		}
		return false
	}

	result.Content = str(payloadContent)
	result.ID = str(payloadChunkID)
	result.Metadata = Metadata{
		ChunkID:     str(payloadChunkID),
		DocumentID:  str(payloadDocumentID),
		OwnerID:     str(payloadOwnerID),
		Filename:    str(payloadFilename),
		Page:        num(payloadPage),
		Ordinal:     num(payloadOrdinal),
		TotalChunks: num(payloadTotalChunks),
		OCRUsed:     boolean(payloadOCRUsed),
		OCRPages:    num(payloadOCRPages),
		TotalPages:  num(payloadTotalPages),
	}
	if ts, err := time.Parse(time.RFC3339Nano, str(payloadUploadDate)); err == nil {
		result.Metadata.UploadDate = ts
	}
}

// encodeFilter translates a Filter to Qdrant must-conditions.
func encodeFilter(f Filter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}
	var conditions []*qdrant.Condition
	if f.OwnerID != "" {
		conditions = append(conditions, matchKeyword(payloadOwnerID, f.OwnerID))
	}
	if f.DocumentID != "" {
		conditions = append(conditions, matchKeyword(payloadDocumentID, f.DocumentID))
	}
	return &qdrant.Filter{Must: conditions}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
