package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/search"
)

type stubClient struct {
	answer   string
	err      error
	lastUser string
}

func (s *stubClient) Complete(_ context.Context, _, user string, _ float64, _ int) (string, error) {
	s.lastUser = user
	return s.answer, s.err
}

func sampleResults(n int) []search.Result {
	out := make([]search.Result, n)
	for i := range out {
		out[i] = search.Result{
			ChunkID:  fmt.Sprintf("doc_chunk_%d", i),
			Filename: "lease.pdf",
			Page:     i + 1,
			Content:  fmt.Sprintf("passage %d", i),
			Score:    0.9,
		}
	}
	return out
}

func TestSynthesizer_NoClient(t *testing.T) {
	s := NewSynthesizer(Config{}, nil, logging.NewNop())
	answer := s.Synthesize(context.Background(), "q", sampleResults(3))
	assert.Equal(t, msgNotConfigured, answer)
}

func TestSynthesizer_NoResults(t *testing.T) {
	s := NewSynthesizer(Config{}, &stubClient{answer: "unused"}, logging.NewNop())
	answer := s.Synthesize(context.Background(), "q", nil)
	assert.Equal(t, msgNoResults, answer)
}

func TestSynthesizer_PromptUsesTopFiveSources(t *testing.T) {
	client := &stubClient{answer: "the notice period is thirty days [Source 1]"}
	s := NewSynthesizer(Config{}, client, logging.NewNop())

	answer := s.Synthesize(context.Background(), "what is the notice period?", sampleResults(8))
	assert.Equal(t, "the notice period is thirty days [Source 1]", answer)

	assert.Contains(t, client.lastUser, "[Source 1: lease.pdf, Page 1]")
	assert.Contains(t, client.lastUser, "[Source 5: lease.pdf, Page 5]")
	assert.NotContains(t, client.lastUser, "[Source 6")
	assert.Contains(t, client.lastUser, "what is the notice period?")
}

func TestSynthesizer_OracleFailureBecomesAnswerText(t *testing.T) {
	client := &stubClient{err: errors.New("model overloaded")}
	s := NewSynthesizer(Config{}, client, logging.NewNop())

	answer := s.Synthesize(context.Background(), "q", sampleResults(2))
	assert.True(t, strings.HasPrefix(answer, "Error generating answer:"))
	assert.Contains(t, answer, "model overloaded")
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.3-70b-versatile", req.Model)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "answer text"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "llama-3.3-70b-versatile"})
	require.NoError(t, err)

	answer, err := client.Complete(context.Background(), "system", "user", 0.3, 500)
	require.NoError(t, err)
	assert.Equal(t, "answer text", answer)
}

func TestClient_NonRetryableError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{APIKey: "bad", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u", 0.3, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	// 401 is not retried.
	assert.Equal(t, 1, calls)
}

func TestClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "http://x", Model: "m"})
	assert.Error(t, err)
	_, err = NewClient(ClientConfig{APIKey: "k", Model: "m"})
	assert.Error(t, err)
	_, err = NewClient(ClientConfig{APIKey: "k", BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&retryableError{err: errors.New("x")}))
	assert.True(t, isRetryableError(fmt.Errorf("wrapped: %w", &retryableError{err: errors.New("x")})))
	assert.False(t, isRetryableError(errors.New("plain")))
	assert.False(t, isRetryableError(nil))
}
