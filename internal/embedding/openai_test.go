package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbeddingsServer struct {
	t        *testing.T
	failures int32
	hits     int32
}

func (s *stubEmbeddingsServer) handler(w http.ResponseWriter, r *http.Request) {
	require.Equal(s.t, "Bearer test-key", r.Header.Get("Authorization"))

	if atomic.AddInt32(&s.hits, 1) <= atomic.LoadInt32(&s.failures) {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	var req struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
	require.Equal(s.t, DefaultModel, req.Model)

	// Reply out of order to confirm the client sorts by index.
	type datum struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]datum, 0, len(req.Input))
	for i := len(req.Input) - 1; i >= 0; i-- {
		data = append(data, datum{Index: i, Embedding: []float32{float32(i)}})
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(s.t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func TestOpenAIClientEmbedBatch(t *testing.T) {
	stub := &stubEmbeddingsServer{t: t}
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", zap.NewNop(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		require.Equal(t, []float32{float32(i)}, v, "vectors come back in input order")
	}
}

func TestOpenAIClientRetriesRateLimit(t *testing.T) {
	stub := &stubEmbeddingsServer{t: t, failures: 1}
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", zap.NewNop(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"only"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Equal(t, int32(2), atomic.LoadInt32(&stub.hits))
}

func TestOpenAIClientFailsOnBadRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", zap.NewNop(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits), "client errors are not retried")
}

func TestOpenAIClientEmptyBatch(t *testing.T) {
	client, err := NewOpenAIClient("test-key", zap.NewNop())
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", zap.NewNop())
	require.Error(t, err)
}
