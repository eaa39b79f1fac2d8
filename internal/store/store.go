// Package store defines the vector store boundary and its adapters. The
// crawler treats the store as an opaque upsert/query service; upserts are
// idempotent by point ID, so duplicate discovery across depths is safe.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Point is one embedded chunk ready for upsert: deterministic ID, dense
// vector, the chunk text (for server-side sparse BM25 embedding) and the
// retrieval payload.
type Point struct {
	ID      string
	Vector  []float32
	Text    string
	Payload map[string]any
}

// ScoredPoint is a query hit.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore is the external vector database boundary.
type VectorStore interface {
	// ValidateCollection verifies the target collection exists with the
	// expected vector configuration. Called once before a run starts.
	ValidateCollection(ctx context.Context) error

	// Upsert writes the points; calling it twice with the same IDs leaves
	// the store in the same observable state as calling it once.
	Upsert(ctx context.Context, points []Point) error

	// Query returns the closest points to the vector. A non-empty text
	// enables hybrid retrieval: dense similarity fused with sparse keyword
	// matching where the backend supports it.
	Query(ctx context.Context, vector []float32, text string, limit int) ([]ScoredPoint, error)

	// Count returns the number of stored points.
	Count(ctx context.Context) (int, error)
}

// PointID derives the deterministic UUID for a document chunk. The same
// URL and chunk index always map to the same ID, which is what makes the
// upsert path idempotent across runs and duplicate discoveries.
func PointID(url string, chunkIndex int) string {
	name := fmt.Sprintf("%s#%d", url, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
