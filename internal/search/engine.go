// Package search runs owner-scoped semantic retrieval over the vector index.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/embeddings"
	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/reranker"
	"github.com/caselight/caselight/internal/vectorstore"
)

var tracer = otel.Tracer("caselight.search")

// ErrEmptyQuery indicates a blank query string.
var ErrEmptyQuery = errors.New("query cannot be empty")

// oversampleFactor widens retrieval when reranking so the cross-encoder
// sees more candidates than the caller asked for.
const oversampleFactor = 3

// Result is one retrieved passage.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Content    string  `json:"content"`
	// Score is cosine similarity, or the normalized rerank score when
	// reranking ran. Rounded to 4 decimal places.
	Score float32 `json:"score"`
}

// Response carries the ranked results and how they were ranked.
type Response struct {
	Results  []Result `json:"results"`
	Reranked bool     `json:"reranked"`
}

// Engine embeds queries and retrieves owner-scoped chunks, optionally
// reranked by a cross-encoder.
type Engine struct {
	embedder embeddings.Provider
	store    vectorstore.Store
	reranker reranker.Reranker // nil means similarity-only ranking
	logger   *logging.Logger
}

// NewEngine creates a search Engine. reranker may be nil when no scoring
// oracle is available; requests asking for reranking then degrade to
// similarity order.
func NewEngine(embedder embeddings.Provider, store vectorstore.Store, rr reranker.Reranker, logger *logging.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		store:    store,
		reranker: rr,
		logger:   logger,
	}
}

// Search retrieves the topK most relevant chunks for the query under the
// context's owner. When rerank is requested and a reranker is available,
// retrieval oversamples by a factor of three and the reranker picks the
// final topK.
func (e *Engine) Search(ctx context.Context, query string, topK int, rerank bool) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Engine.Search")
	defer span.End()

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 5
	}
	span.SetAttributes(attribute.Int("top_k", topK), attribute.Bool("rerank_requested", rerank))

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	useReranker := rerank && e.reranker != nil
	retrievalK := topK
	if useReranker {
		retrievalK = topK * oversampleFactor
	}

	hits, err := e.store.Query(ctx, vector, retrievalK, vectorstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ChunkID:    h.Metadata.ChunkID,
			DocumentID: h.Metadata.DocumentID,
			Filename:   h.Metadata.Filename,
			Page:       h.Metadata.Page,
			Content:    h.Content,
			Score:      round4(1 - h.Distance),
		}
	}

	if !useReranker {
		if len(results) > topK {
			results = results[:topK]
		}
		return &Response{Results: results, Reranked: false}, nil
	}

	candidates := make([]reranker.Candidate, len(results))
	for i, r := range results {
		candidates[i] = reranker.Candidate{ID: r.ChunkID, Content: r.Content, Score: r.Score}
	}

	ranked, err := e.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		// Reranking is best-effort; fall back to similarity order.
		e.logger.Warn(ctx, "reranking failed, returning similarity order", zap.Error(err))
		if len(results) > topK {
			results = results[:topK]
		}
		return &Response{Results: results, Reranked: false}, nil
	}

	reranked := make([]Result, len(ranked))
	for i, r := range ranked {
		out := results[r.OriginalRank]
		out.Score = round4(r.RerankScore)
		reranked[i] = out
	}

	span.SetAttributes(attribute.Int("results", len(reranked)))
	return &Response{Results: reranked, Reranked: true}, nil
}

func round4(v float32) float32 {
	return float32(math.Round(float64(v)*10000) / 10000)
}
