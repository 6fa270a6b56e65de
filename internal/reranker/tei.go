package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRerankFailed indicates a reranking request failure
	ErrRerankFailed = errors.New("reranking failed")
)

// TEIConfig holds configuration for the TEI reranking server.
type TEIConfig struct {
	// BaseURL is the base URL for the TEI rerank server
	BaseURL string

	// Timeout bounds each HTTP request
	Timeout time.Duration
}

// TEIScorer scores query/text pairs against a TEI /rerank endpoint
// backed by a cross-encoder model.
type TEIScorer struct {
	config TEIConfig
	client *http.Client
}

// NewTEIScorer creates a TEIScorer with the given configuration.
func NewTEIScorer(config TEIConfig) (*TEIScorer, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &TEIScorer{
		config: config,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// rerankRequest is the request body for the TEI rerank endpoint.
type rerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

// rerankResult is one entry of the TEI rerank response.
type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Probe checks whether the rerank endpoint is reachable and functional.
// Called once at startup; a failure downgrades the service to
// similarity-only ranking rather than failing requests later.
func (s *TEIScorer) Probe(ctx context.Context) error {
	_, err := s.ScorePairs(ctx, "probe", []string{"probe"})
	return err
}

// ScorePairs scores each text against the query. Scores are returned in
// input order regardless of the order TEI responds in.
func (s *TEIScorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRerankFailed, resp.StatusCode, string(respBody))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("%w: got %d scores for %d texts", ErrRerankFailed, len(results), len(texts))
	}

	// TEI returns results sorted by score; restore input order by index.
	scores := make([]float64, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("%w: result index %d out of range", ErrRerankFailed, r.Index)
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}

// Ensure TEIScorer implements Scorer interface.
var _ Scorer = (*TEIScorer)(nil)
