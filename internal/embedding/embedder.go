// Package embedding turns extracted document text into dense vectors via
// the OpenAI embeddings API.
package embedding

import "context"

// Dimensions of text-embedding-3-small vectors; the Qdrant collections are
// provisioned to match.
const Dimensions = 1536

// DefaultModel is the embedding model used for all tax collections.
const DefaultModel = "text-embedding-3-small"

// Embedder converts a batch of texts into vectors, one per input, in input
// order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StaticEmbedder returns a fixed vector for every input. Test helper.
type StaticEmbedder struct {
	Vector []float32
	Calls  int
}

// EmbedBatch implements Embedder.
func (s *StaticEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.Calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.Vector
	}
	return out, nil
}
