package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/embedding"
)

// QdrantStore talks to a Qdrant Cloud cluster over its REST API. Each tax
// source writes to its own collection with a named dense vector
// "<source>-dense" and a named sparse vector "<source>-sparse" (BM25,
// computed server-side from the chunk text); collections are provisioned
// out of band, so a missing or misconfigured collection is a startup
// error, not something the crawler creates on the fly.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	denseName  string
	sparseName string
	httpClient *http.Client
	logger     *zap.Logger
}

// bm25Model is Qdrant's server-side sparse embedding model. Sending the
// chunk text under this model makes the cluster compute the BM25 vector
// itself; the crawler never embeds sparse vectors locally.
const bm25Model = "Qdrant/bm25"

type sparseDocument struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// QdrantConfig captures the connection parameters for one collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Source     string
}

// NewQdrantStore builds the adapter. Credentials are required; validation
// of the collection happens separately via ValidateCollection.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("qdrant api key is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("qdrant source prefix is required")
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		denseName:  cfg.Source + "-dense",
		sparseName: cfg.Source + "-sparse",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

type collectionInfoResponse struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors map[string]struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
				SparseVectors map[string]json.RawMessage `json:"sparse_vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// ValidateCollection checks that the collection exists and carries the
// expected named dense and sparse vectors. The sparse vector's IDF
// modifier is not surfaced by the collection API, so only its presence
// can be verified here.
func (q *QdrantStore) ValidateCollection(ctx context.Context) error {
	path := fmt.Sprintf("/collections/%s", q.collection)
	resp, err := q.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf(
			"collection %q does not exist; create it with a dense vector %q (size=%d, distance=Cosine) and a sparse vector %q (modifier=IDF)",
			q.collection, q.denseName, embedding.Dimensions, q.sparseName,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get collection %q: unexpected status %s", q.collection, resp.Status)
	}

	var info collectionInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decode collection info: %w", err)
	}
	vec, ok := info.Result.Config.Params.Vectors[q.denseName]
	if !ok {
		return fmt.Errorf("collection %q is missing dense vector %q", q.collection, q.denseName)
	}
	if vec.Size != embedding.Dimensions {
		return fmt.Errorf("dense vector %q has size %d, want %d", q.denseName, vec.Size, embedding.Dimensions)
	}
	if _, ok := info.Result.Config.Params.SparseVectors[q.sparseName]; !ok {
		return fmt.Errorf("collection %q is missing sparse vector %q (modifier=IDF)", q.collection, q.sparseName)
	}
	return nil
}

type upsertRequest struct {
	Points []upsertPoint `json:"points"`
}

type upsertPoint struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes the points with wait=true so acknowledgment means the write
// is durable. Each point carries the dense embedding plus the chunk text as
// a BM25 document, which the cluster turns into the sparse vector.
func (q *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	req := upsertRequest{Points: make([]upsertPoint, 0, len(points))}
	for _, p := range points {
		vector := map[string]any{q.denseName: p.Vector}
		if p.Text != "" {
			vector[q.sparseName] = sparseDocument{Text: p.Text, Model: bm25Model}
		}
		req.Points = append(req.Points, upsertPoint{
			ID:      p.ID,
			Vector:  vector,
			Payload: p.Payload,
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
	resp, err := q.do(ctx, http.MethodPut, path, req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upsert %d points: %s - %s", len(points), resp.Status, string(payload))
	}
	q.logger.Debug("qdrant upsert acknowledged",
		zap.String("collection", q.collection),
		zap.Int("points", len(points)),
	)
	return nil
}

type prefetchClause struct {
	Query any    `json:"query"`
	Using string `json:"using"`
	Limit int    `json:"limit"`
}

type queryRequest struct {
	Prefetch    []prefetchClause `json:"prefetch,omitempty"`
	Query       []float32        `json:"query"`
	Using       string           `json:"using"`
	Limit       int              `json:"limit"`
	WithPayload bool             `json:"with_payload"`
}

type queryResponse struct {
	Result struct {
		Points []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// Query returns the closest points to the vector. With a non-empty text it
// runs hybrid retrieval: dense and BM25 sparse prefetch branches, re-ranked
// by dense similarity. Without text it falls back to dense-only search.
func (q *QdrantStore) Query(ctx context.Context, vector []float32, text string, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	req := queryRequest{
		Query:       vector,
		Using:       q.denseName,
		Limit:       limit,
		WithPayload: true,
	}
	if text != "" {
		req.Prefetch = []prefetchClause{
			{Query: vector, Using: q.denseName, Limit: limit * 2},
			{Query: sparseDocument{Text: text, Model: bm25Model}, Using: q.sparseName, Limit: limit * 2},
		}
	}
	path := fmt.Sprintf("/collections/%s/points/query", q.collection)
	resp, err := q.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query collection %q: unexpected status %s", q.collection, resp.Status)
	}
	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	out := make([]ScoredPoint, 0, len(parsed.Result.Points))
	for _, p := range parsed.Result.Points {
		out = append(out, ScoredPoint{ID: p.ID, Score: p.Score, Payload: p.Payload})
	}
	return out, nil
}

type countResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// Count returns the exact number of stored points.
func (q *QdrantStore) Count(ctx context.Context) (int, error) {
	path := fmt.Sprintf("/collections/%s/points/count", q.collection)
	resp, err := q.do(ctx, http.MethodPost, path, map[string]any{"exact": true})
	if err != nil {
		return 0, err
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("count collection %q: unexpected status %s", q.collection, resp.Status)
	}
	var parsed countResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return parsed.Result.Count, nil
}

func (q *QdrantStore) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal qdrant request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("new qdrant request: %w", err)
	}
	req.Header.Set("api-key", q.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
