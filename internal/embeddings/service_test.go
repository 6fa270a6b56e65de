package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIStub(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)

		var req struct {
			Inputs   interface{} `json:"inputs"`
			Truncate bool        `json:"truncate"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		count := 1
		if texts, ok := req.Inputs.([]interface{}); ok {
			count = len(texts)
		}
		vectors := make([][]float32, count)
		for i := range vectors {
			vec := make([]float32, dim)
			vec[i%dim] = 1
			vectors[i] = vec
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Dimension: 384})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewService(Config{BaseURL: "http://localhost:8081"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestService_EmbedQuery(t *testing.T) {
	srv := newTEIStub(t, 4)
	svc, err := NewService(Config{BaseURL: srv.URL, Dimension: 4})
	require.NoError(t, err)

	vec, err := svc.EmbedQuery(context.Background(), "termination clause")
	require.NoError(t, err)
	assert.Len(t, vec, 4)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_EmbedDocuments(t *testing.T) {
	srv := newTEIStub(t, 4)
	svc, err := NewService(Config{BaseURL: srv.URL, Dimension: 4})
	require.NoError(t, err)

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_DimensionMismatch(t *testing.T) {
	srv := newTEIStub(t, 8)
	svc, err := NewService(Config{BaseURL: srv.URL, Dimension: 4})
	require.NoError(t, err)

	// A server embedding with the wrong model is rejected before its
	// vectors can reach the index.
	_, err = svc.EmbedQuery(context.Background(), "termination clause")
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "8-dimensional")

	_, err = svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	svc, err := NewService(Config{BaseURL: srv.URL, Dimension: 4})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
