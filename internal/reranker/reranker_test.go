package reranker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedScorer returns a preset score slice.
type fixedScorer struct {
	scores []float64
	err    error
}

func (f *fixedScorer) ScorePairs(_ context.Context, _ string, texts []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores[:len(texts)], nil
}

func candidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{ID: string(rune('a' + i)), Content: "text", Score: 0.9}
	}
	return out
}

func TestCrossEncoder_NormalizesToUnitInterval(t *testing.T) {
	enc := NewCrossEncoder(&fixedScorer{scores: []float64{-4.2, 1.7, 9.3}})

	ranked, err := enc.Rerank(context.Background(), "q", candidates(3), 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// Max raw score ranks first with 1.0; min ranks last with 0.0.
	assert.Equal(t, "c", ranked[0].ID)
	assert.InDelta(t, 1.0, ranked[0].RerankScore, 1e-6)
	assert.Equal(t, "a", ranked[2].ID)
	assert.InDelta(t, 0.0, ranked[2].RerankScore, 1e-6)
	for _, r := range ranked {
		assert.GreaterOrEqual(t, r.RerankScore, float32(0))
		assert.LessOrEqual(t, r.RerankScore, float32(1))
	}
}

func TestCrossEncoder_AllEqualScores(t *testing.T) {
	enc := NewCrossEncoder(&fixedScorer{scores: []float64{2.5, 2.5, 2.5}})

	ranked, err := enc.Rerank(context.Background(), "q", candidates(3), 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// No spread to normalize: everyone gets 0.5 and the retrieval
	// order survives.
	for i, r := range ranked {
		assert.InDelta(t, 0.5, r.RerankScore, 1e-6)
		assert.Equal(t, i, r.OriginalRank)
	}
}

func TestCrossEncoder_TruncatesToTopK(t *testing.T) {
	enc := NewCrossEncoder(&fixedScorer{scores: []float64{1, 2, 3, 4, 5}})

	ranked, err := enc.Rerank(context.Background(), "q", candidates(5), 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "e", ranked[0].ID)
	assert.Equal(t, "d", ranked[1].ID)
}

func TestCrossEncoder_EmptyCandidates(t *testing.T) {
	enc := NewCrossEncoder(&fixedScorer{})
	ranked, err := enc.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestCrossEncoder_ScorerFailurePropagates(t *testing.T) {
	scoreErr := errors.New("server down")
	enc := NewCrossEncoder(&fixedScorer{err: scoreErr})
	_, err := enc.Rerank(context.Background(), "q", candidates(2), 2)
	assert.ErrorIs(t, err, scoreErr)
}

func TestLexicalScorer(t *testing.T) {
	scorer := NewLexicalScorer()

	scores, err := scorer.ScorePairs(context.Background(), "termination notice period", []string{
		"the termination notice period shall not exceed thirty days",
		"rental payments are due monthly",
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.InDelta(t, 0.0, scores[1], 1e-9)
}

func TestLexicalScorer_StopwordOnlyQuery(t *testing.T) {
	scorer := NewLexicalScorer()
	scores, err := scorer.ScorePairs(context.Background(), "the and of", []string{"anything"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, scores)
}

func TestTEIScorer_ScorePairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		var req struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Respond sorted by score descending, the TEI convention.
		results := []map[string]interface{}{
			{"index": 1, "score": 8.4},
			{"index": 0, "score": -1.2},
		}
		require.NoError(t, json.NewEncoder(w).Encode(results))
	}))
	t.Cleanup(srv.Close)

	scorer, err := NewTEIScorer(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	scores, err := scorer.ScorePairs(context.Background(), "q", []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.2, 8.4}, scores)
}

func TestTEIScorer_Probe(t *testing.T) {
	t.Run("healthy endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{{"index": 0, "score": 0.1}})
		}))
		t.Cleanup(srv.Close)

		scorer, err := NewTEIScorer(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)
		assert.NoError(t, scorer.Probe(context.Background()))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		scorer, err := NewTEIScorer(TEIConfig{BaseURL: "http://127.0.0.1:1"})
		require.NoError(t, err)
		assert.Error(t, scorer.Probe(context.Background()))
	})
}
