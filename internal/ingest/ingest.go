// Package ingest turns fetched documents into stored vectors: chunk, embed,
// upsert, archive, and announce. Documents batch up to the configured size
// before embedding, with a final flush when the run completes.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/crawler"
	"github.com/taxrag/tax-rag-crawler/internal/database"
	"github.com/taxrag/tax-rag-crawler/internal/embedding"
	"github.com/taxrag/tax-rag-crawler/internal/metrics"
	"github.com/taxrag/tax-rag-crawler/internal/publisher"
	"github.com/taxrag/tax-rag-crawler/internal/store"
	"github.com/taxrag/tax-rag-crawler/internal/storage"
)

// Config controls one pipeline instance.
type Config struct {
	RunID     string
	CrawlType string

	// BatchSize is how many documents buffer before an embed-and-upsert
	// flush. It is 0 when the vector store is disabled, which turns
	// batching off entirely.
	BatchSize int
}

// Pipeline implements crawler.Ingestor. The vector path (embedder + store)
// and the side channels (archive, history, events) are all optional; with
// the vector store disabled, records fall back to the local document sink.
type Pipeline struct {
	cfg      Config
	handler  crawler.SiteHandler
	chunker  *embedding.Chunker
	embedder embedding.Embedder
	vectors  store.VectorStore
	sink     *store.LocalDocumentSink
	archive  storage.Provider
	history  database.Provider
	events   publisher.Publisher
	retry    crawler.RetryPolicy
	logger   *zap.Logger

	mu    sync.Mutex
	batch []batchedDoc
}

type batchedDoc struct {
	doc        crawler.Document
	content    string
	title      string
	archiveURI string
}

// Options carries the pipeline's collaborators; nil fields disable the
// corresponding side channel.
type Options struct {
	Handler  crawler.SiteHandler
	Chunker  *embedding.Chunker
	Embedder embedding.Embedder
	Vectors  store.VectorStore
	Sink     *store.LocalDocumentSink
	Archive  storage.Provider
	History  database.Provider
	Events   publisher.Publisher
	Retry    crawler.RetryPolicy
}

// New validates the wiring and builds a pipeline.
func New(cfg Config, opts Options, logger *zap.Logger) (*Pipeline, error) {
	if cfg.RunID == "" {
		return nil, fmt.Errorf("ingest: run id is required")
	}
	if cfg.CrawlType == "" {
		return nil, fmt.Errorf("ingest: crawl type is required")
	}
	if opts.Vectors != nil {
		if opts.Embedder == nil {
			return nil, fmt.Errorf("ingest: vector store requires an embedder")
		}
		if cfg.BatchSize <= 0 {
			return nil, fmt.Errorf("ingest: vector store requires a positive batch size")
		}
	}
	if opts.Vectors == nil && opts.Sink == nil {
		return nil, fmt.Errorf("ingest: either a vector store or a local sink is required")
	}
	if opts.Handler == nil {
		opts.Handler = crawler.DefaultHandler{}
	}
	if opts.Chunker == nil {
		opts.Chunker = embedding.NewChunker(0, 0)
	}
	if opts.Retry == nil {
		opts.Retry = crawler.NewExponentialRetryPolicy()
	}
	return &Pipeline{
		cfg:      cfg,
		handler:  opts.Handler,
		chunker:  opts.Chunker,
		embedder: opts.Embedder,
		vectors:  opts.Vectors,
		sink:     opts.Sink,
		archive:  opts.Archive,
		history:  opts.History,
		events:   opts.Events,
		retry:    opts.Retry,
		logger:   logger,
	}, nil
}

// Ingest buffers the document, flushing when the batch fills. With the
// vector store disabled it writes the record straight to the local sink.
func (p *Pipeline) Ingest(ctx context.Context, doc crawler.Document) error {
	record, err := p.handler.ParseContent(doc)
	if err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	archiveURI := p.archivePage(ctx, doc)

	content, _ := record["content"].(string)
	title, _ := record["title"].(string)

	if p.vectors == nil {
		return p.storeLocally(ctx, doc, record, archiveURI)
	}

	p.mu.Lock()
	p.batch = append(p.batch, batchedDoc{doc: doc, content: content, title: title, archiveURI: archiveURI})
	full := len(p.batch) >= p.cfg.BatchSize
	p.mu.Unlock()

	if full {
		return p.Flush(ctx)
	}
	return nil
}

// Flush embeds and upserts whatever is buffered. Safe to call with an empty
// batch. On failure the batch is re-buffered, so the documents get another
// chance on the next flush instead of being dropped.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.batch
	p.batch = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.ObserveBatchFlush(time.Since(start))
	}()

	// Chunk every document, remembering which chunks belong to which doc.
	var texts []string
	type chunkRef struct {
		docIndex   int
		chunkIndex int
	}
	var refs []chunkRef
	for i, b := range batch {
		for j, chunk := range p.chunker.Split(b.content) {
			texts = append(texts, chunk)
			refs = append(refs, chunkRef{docIndex: i, chunkIndex: j})
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.requeue(batch)
		return fmt.Errorf("embed batch of %d chunks: %w", len(texts), err)
	}
	metrics.AddDocumentsEmbedded(len(texts))

	points := make([]store.Point, len(texts))
	pointsByDoc := make(map[int][]string)
	for i, ref := range refs {
		b := batch[ref.docIndex]
		id := store.PointID(b.doc.URL, ref.chunkIndex)
		points[i] = store.Point{
			ID:     id,
			Vector: vectors[i],
			Text:   texts[i],
			Payload: map[string]any{
				"url":         b.doc.URL,
				"title":       b.title,
				"content":     texts[i],
				"chunk_index": ref.chunkIndex,
				"crawl_type":  p.cfg.CrawlType,
				"fetched_at":  b.doc.FetchedAt.Format(time.RFC3339),
			},
		}
		pointsByDoc[ref.docIndex] = append(pointsByDoc[ref.docIndex], id)
	}

	if err := p.upsertWithRetry(ctx, points); err != nil {
		metrics.ObserveVectorUpsert("failed")
		p.requeue(batch)
		return err
	}
	metrics.ObserveVectorUpsert("success")

	for i, b := range batch {
		p.recordDocument(ctx, b.doc, b.title, pointsByDoc[i], b.archiveURI)
	}
	p.logger.Info("ingest batch flushed",
		zap.Int("documents", len(batch)),
		zap.Int("chunks", len(texts)),
	)
	return nil
}

// requeue puts a failed batch back at the front of the buffer, keeping the
// documents in arrival order ahead of anything ingested since.
func (p *Pipeline) requeue(batch []batchedDoc) {
	p.mu.Lock()
	p.batch = append(batch, p.batch...)
	p.mu.Unlock()
}

func (p *Pipeline) upsertWithRetry(ctx context.Context, points []store.Point) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = p.vectors.Upsert(ctx, points)
		if err == nil {
			return nil
		}
		if !p.retry.ShouldRetry(err, attempt) {
			return fmt.Errorf("upsert %d points: %w", len(points), err)
		}
		metrics.IncStoreRetry()
		backoff := p.retry.Backoff(attempt)
		p.logger.Warn("vector upsert retry",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("upsert canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (p *Pipeline) storeLocally(ctx context.Context, doc crawler.Document, record map[string]any, archiveURI string) error {
	record["crawl_type"] = p.cfg.CrawlType
	record["fetched_at"] = doc.FetchedAt.Format(time.RFC3339)
	id := store.PointID(doc.URL, 0)
	if err := p.sink.SaveDocument(ctx, id, record); err != nil {
		return fmt.Errorf("local store: %w", err)
	}
	p.recordDocument(ctx, doc, fmt.Sprint(record["title"]), []string{id}, archiveURI)
	return nil
}

// archivePage snapshots the raw HTML and returns the archive URI, or ""
// when archiving is off or failed. Best effort: an archive failure never
// fails the task.
func (p *Pipeline) archivePage(ctx context.Context, doc crawler.Document) string {
	if p.archive == nil || len(doc.HTML) == 0 {
		return ""
	}
	name := archiveObjectName(doc)
	uri, err := p.archive.Save(ctx, name, doc.HTML)
	if err != nil {
		p.logger.Warn("page archive failed", zap.String("url", doc.URL), zap.Error(err))
		return ""
	}
	metrics.IncDocumentsArchived()
	return uri
}

// recordDocument writes the history row and publishes the ingestion event.
// Both are side channels; failures are logged, not propagated.
func (p *Pipeline) recordDocument(ctx context.Context, doc crawler.Document, title string, pointIDs []string, archiveURI string) {
	if p.history != nil {
		rec := database.DocumentRecord{
			RunID:      p.cfg.RunID,
			URL:        doc.URL,
			Title:      title,
			PointIDs:   pointIDs,
			ArchiveURI: archiveURI,
			FetchedAt:  doc.FetchedAt,
		}
		if err := p.history.SaveDocument(ctx, rec); err != nil {
			p.logger.Warn("history record failed", zap.String("url", doc.URL), zap.Error(err))
		}
	}
	if p.events != nil {
		event := publisher.Event{
			RunID:     p.cfg.RunID,
			CrawlType: p.cfg.CrawlType,
			URL:       doc.URL,
			PointIDs:  pointIDs,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := p.events.Publish(ctx, event); err != nil {
			p.logger.Warn("event publish failed", zap.String("url", doc.URL), zap.Error(err))
			return
		}
		metrics.IncDocumentsPublished()
	}
}

func archiveObjectName(doc crawler.Document) string {
	urlHash := fmt.Sprintf("%x", sha256.Sum256([]byte(doc.URL)))
	return path.Join(
		"pages",
		doc.FetchedAt.Format("2006-01-02"),
		fmt.Sprintf("%s.html", urlHash),
	)
}
