// Package reranker provides search result re-ranking for improving retrieval quality.
package reranker

import (
	"context"
)

// Candidate is a retrieved passage entering the reranking stage.
type Candidate struct {
	ID      string  // Chunk identifier
	Content string  // Text content to be re-ranked
	Score   float32 // Similarity score from the vector search
}

// Ranked is a candidate with its reranking score.
type Ranked struct {
	Candidate
	// RerankScore is the normalized relevance score in [0, 1]. It
	// replaces the similarity score as the reported relevance.
	RerankScore float32
	// OriginalRank is the candidate's position before reranking (0-indexed).
	OriginalRank int
}

// Reranker re-orders candidates by query relevance.
type Reranker interface {
	// Rerank scores candidates against the query and returns them sorted
	// by RerankScore descending, limited to topK results.
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Ranked, error)

	// Close releases any resources held by the reranker.
	Close() error
}

// Scorer produces raw relevance scores for query/text pairs. Raw scores
// are unbounded; CrossEncoder normalizes them.
type Scorer interface {
	// ScorePairs returns one raw score per text, in input order.
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)
}
