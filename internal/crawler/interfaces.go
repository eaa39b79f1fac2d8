package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a page and returns the extracted document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Document, error)
}

// RetryPolicy decides whether and when a failed operation is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// SiteHandler is the per-site capability the engine invokes polymorphically:
// which outbound links to follow and what structured record a page yields.
// Profiles may supply their own; DefaultHandler covers plain article pages.
type SiteHandler interface {
	ParseLinks(doc Document) []string
	ParseContent(doc Document) (map[string]any, error)
}

// Ingestor receives every successfully fetched document. Implementations
// batch, embed and store; Flush drains whatever is still buffered at the end
// of the run.
type Ingestor interface {
	Ingest(ctx context.Context, doc Document) error
	Flush(ctx context.Context) error
}
