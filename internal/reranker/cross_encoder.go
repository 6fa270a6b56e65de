package reranker

import (
	"context"
	"fmt"
	"sort"
)

// CrossEncoder reranks candidates using a Scorer and min-max score
// normalization.
type CrossEncoder struct {
	scorer Scorer
}

// NewCrossEncoder creates a CrossEncoder over the given scorer.
func NewCrossEncoder(scorer Scorer) *CrossEncoder {
	return &CrossEncoder{scorer: scorer}
}

// Rerank scores every candidate against the query, min-max normalizes the
// raw scores into [0, 1], and returns the top K by normalized score.
// When all raw scores are equal every candidate gets 0.5, which keeps the
// original ordering.
func (r *CrossEncoder) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Ranked, error) {
	if topK <= 0 {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return []Ranked{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	raw, err := r.scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}
	if len(raw) != len(candidates) {
		return nil, fmt.Errorf("scorer returned %d scores for %d candidates", len(raw), len(candidates))
	}

	normalized := normalize(raw)

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{
			Candidate:    c,
			RerankScore:  float32(normalized[i]),
			OriginalRank: i,
		}
	}

	// Stable so equal scores keep the retrieval order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	if topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// Close closes the underlying scorer if it holds resources.
func (r *CrossEncoder) Close() error {
	if closer, ok := r.scorer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// normalize rescales raw scores into [0, 1] via min-max. All-equal inputs
// map to 0.5 since there is no spread to preserve.
func normalize(raw []float64) []float64 {
	min, max := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(raw))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	spread := max - min
	for i, v := range raw {
		out[i] = (v - min) / spread
	}
	return out
}

// Ensure CrossEncoder implements Reranker interface.
var _ Reranker = (*CrossEncoder)(nil)
