package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// CollyFetcher fetches pages through a shared Colly collector, cloning it
// per request so concurrent fetches do not share handler state. Transient
// failures (timeouts, 5xx, 429) are retried with the configured policy;
// other 4xx responses are permanent.
type CollyFetcher struct {
	baseCollector *colly.Collector
	retry         RetryPolicy
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, retry RetryPolicy, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     cfg.MaxConcurrency * 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyFetcher{
		baseCollector: base,
		retry:         retry,
		logger:        logger,
	}, nil
}

// Fetch retrieves rawURL, retrying transient failures.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	for attempt := 0; ; attempt++ {
		doc, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return Document{}, err
		}
		backoff := f.retry.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Document{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, rawURL string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		doc := Document{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			HTML:       append([]byte{}, r.Body...),
			FetchedAt:  time.Now().UTC(),
		}
		send(fetchResult{doc: doc})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: classifyFetchError(rawURL, status, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Document{}, classifyFetchError(rawURL, 0, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		if res.err != nil {
			return Document{}, res.err
		}
		return extractDocument(res.doc)
	default:
		return Document{}, &FetchError{URL: rawURL, Err: errors.New("colly fetch produced no result")}
	}
}

type fetchResult struct {
	doc Document
	err error
}

// classifyFetchError splits failures into retryable and permanent. 429 is
// transient (the server asked us to slow down), every other 4xx is final.
func classifyFetchError(rawURL string, status int, err error) error {
	permanent := status >= 400 && status < 500 && status != http.StatusTooManyRequests
	return &FetchError{
		URL:        rawURL,
		StatusCode: status,
		Permanent:  permanent,
		Err:        err,
	}
}
