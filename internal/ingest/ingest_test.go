package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/crawler"
	"github.com/taxrag/tax-rag-crawler/internal/database"
	"github.com/taxrag/tax-rag-crawler/internal/embedding"
	"github.com/taxrag/tax-rag-crawler/internal/publisher"
	"github.com/taxrag/tax-rag-crawler/internal/storage"
	"github.com/taxrag/tax-rag-crawler/internal/store"
)

// memoryVectorStore records upserts keyed by point ID and can fail the
// first N calls to exercise the retry path.
type memoryVectorStore struct {
	mu          sync.Mutex
	points      map[string]store.Point
	upsertCalls int
	failFirst   int
}

func newMemoryVectorStore() *memoryVectorStore {
	return &memoryVectorStore{points: make(map[string]store.Point)}
}

func (m *memoryVectorStore) ValidateCollection(context.Context) error { return nil }

func (m *memoryVectorStore) Upsert(_ context.Context, points []store.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertCalls <= m.failFirst {
		return errors.New("write timeout")
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *memoryVectorStore) Query(context.Context, []float32, string, int) ([]store.ScoredPoint, error) {
	return nil, nil
}

func (m *memoryVectorStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points), nil
}

func (m *memoryVectorStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

func testDocument(n int) crawler.Document {
	url := fmt.Sprintf("https://site.test/page-%d", n)
	return crawler.Document{
		URL:       url,
		FinalURL:  url,
		Title:     fmt.Sprintf("Page %d", n),
		Text:      fmt.Sprintf("Body of page %d with enough words to embed.", n),
		HTML:      []byte("<html><body>snapshot</body></html>"),
		FetchedAt: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func vectorPipeline(t *testing.T, batchSize int, vectors store.VectorStore, extra func(*Options)) *Pipeline {
	t.Helper()
	opts := Options{
		Embedder: &embedding.StaticEmbedder{Vector: []float32{0.5}},
		Vectors:  vectors,
		Chunker:  embedding.NewChunker(50, 10),
	}
	if extra != nil {
		extra(&opts)
	}
	p, err := New(Config{RunID: "run-1", CrawlType: "ita", BatchSize: batchSize}, opts, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestPipelineFlushesWhenBatchFills(t *testing.T) {
	vectors := newMemoryVectorStore()
	p := vectorPipeline(t, 2, vectors, nil)
	ctx := context.Background()

	require.NoError(t, p.Ingest(ctx, testDocument(1)))
	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "first document only buffers")

	require.NoError(t, p.Ingest(ctx, testDocument(2)))
	count, err = vectors.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count, "second document fills the batch and flushes")
}

func TestPipelineFinalFlush(t *testing.T) {
	vectors := newMemoryVectorStore()
	p := vectorPipeline(t, 10, vectors, nil)
	ctx := context.Background()

	require.NoError(t, p.Ingest(ctx, testDocument(1)))
	require.NoError(t, p.Flush(ctx))

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, p.Flush(ctx), "flushing an empty batch is a no-op")
	require.Equal(t, 1, vectors.calls())
}

func TestPipelineIdempotentAcrossRuns(t *testing.T) {
	vectors := newMemoryVectorStore()
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		p := vectorPipeline(t, 10, vectors, nil)
		require.NoError(t, p.Ingest(ctx, testDocument(1)))
		require.NoError(t, p.Flush(ctx))
	}

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count, "re-ingesting the same URL overwrites the same point")
}

// noRetry fails every attempt immediately so flush outcomes surface on the
// first store error.
type noRetry struct{}

func (noRetry) ShouldRetry(error, int) bool { return false }
func (noRetry) Backoff(int) time.Duration   { return 0 }

func TestPipelineKeepsBatchOnFailedFlush(t *testing.T) {
	vectors := newMemoryVectorStore()
	vectors.failFirst = 1
	p := vectorPipeline(t, 10, vectors, func(opts *Options) {
		opts.Retry = noRetry{}
	})
	ctx := context.Background()

	require.NoError(t, p.Ingest(ctx, testDocument(1)))
	require.NoError(t, p.Ingest(ctx, testDocument(2)))
	require.Error(t, p.Flush(ctx))

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "nothing stored by the failed flush")

	require.NoError(t, p.Flush(ctx), "the batch survives the failure and flushes on retry")
	count, err = vectors.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestPipelineRetriesUpsert(t *testing.T) {
	vectors := newMemoryVectorStore()
	vectors.failFirst = 1
	p := vectorPipeline(t, 1, vectors, nil)

	require.NoError(t, p.Ingest(context.Background(), testDocument(1)))
	require.Equal(t, 2, vectors.calls())
}

func TestPipelinePointPayload(t *testing.T) {
	vectors := newMemoryVectorStore()
	p := vectorPipeline(t, 1, vectors, nil)
	doc := testDocument(7)

	require.NoError(t, p.Ingest(context.Background(), doc))

	id := store.PointID(doc.URL, 0)
	point, ok := vectors.points[id]
	require.True(t, ok, "point id derives from URL and chunk index")
	require.Equal(t, doc.URL, point.Payload["url"])
	require.Equal(t, doc.Title, point.Payload["title"])
	require.Equal(t, "ita", point.Payload["crawl_type"])
	require.Equal(t, 0, point.Payload["chunk_index"])
	require.NotEmpty(t, point.Payload["content"])
	require.Equal(t, point.Payload["content"], point.Text, "chunk text rides along for sparse embedding")
}

func TestPipelineSideChannels(t *testing.T) {
	vectors := newMemoryVectorStore()
	archive := storage.NewMemoryProvider()
	history := database.NewMemoryProvider()
	events := publisher.NewMemoryPublisher()

	p := vectorPipeline(t, 1, vectors, func(opts *Options) {
		opts.Archive = archive
		opts.History = history
		opts.Events = events
	})
	doc := testDocument(3)
	require.NoError(t, p.Ingest(context.Background(), doc))

	require.Equal(t, 1, archive.Len(), "raw page snapshot archived")

	docs := history.Documents()
	require.Len(t, docs, 1)
	require.Equal(t, "run-1", docs[0].RunID)
	require.Equal(t, doc.URL, docs[0].URL)
	require.Equal(t, []string{store.PointID(doc.URL, 0)}, docs[0].PointIDs)
	require.True(t, strings.HasPrefix(docs[0].ArchiveURI, "memory://"))

	published := events.Events()
	require.Len(t, published, 1)
	require.Equal(t, "ita", published[0].CrawlType)
	require.Equal(t, doc.URL, published[0].URL)
}

func TestPipelineLocalOnlyMode(t *testing.T) {
	sink, err := store.NewLocalDocumentSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	history := database.NewMemoryProvider()

	p, err := New(Config{RunID: "run-1", CrawlType: "ita"}, Options{
		Sink:    sink,
		History: history,
	}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Ingest(ctx, testDocument(1)))
	require.NoError(t, p.Flush(ctx), "nothing buffers without a vector store")
	require.Len(t, history.Documents(), 1)
}

func TestPipelineRejectsEmptyPage(t *testing.T) {
	p := vectorPipeline(t, 2, newMemoryVectorStore(), nil)
	doc := testDocument(1)
	doc.Text = "   "
	require.Error(t, p.Ingest(context.Background(), doc))
}

func TestNewPipelineValidation(t *testing.T) {
	logger := zap.NewNop()
	embedder := &embedding.StaticEmbedder{Vector: []float32{1}}
	vectors := newMemoryVectorStore()

	_, err := New(Config{CrawlType: "ita", BatchSize: 1}, Options{Embedder: embedder, Vectors: vectors}, logger)
	require.Error(t, err, "run id required")

	_, err = New(Config{RunID: "r", CrawlType: "ita", BatchSize: 1}, Options{Vectors: vectors}, logger)
	require.Error(t, err, "vector store requires an embedder")

	_, err = New(Config{RunID: "r", CrawlType: "ita"}, Options{Embedder: embedder, Vectors: vectors}, logger)
	require.Error(t, err, "vector store requires a batch size")

	_, err = New(Config{RunID: "r", CrawlType: "ita"}, Options{}, logger)
	require.Error(t, err, "a store or sink is required")
}
