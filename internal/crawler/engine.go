package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/metrics"
)

// idlePollInterval is how long an idle worker waits before re-checking the
// frontier while siblings may still discover links.
const idlePollInterval = 25 * time.Millisecond

// Engine drives one crawl run: a pool of MaxConcurrency workers pulling
// tasks from the frontier, each task passing through the politeness gate,
// the fetcher, the filter chain (re-feeding the frontier) and the ingestor.
// A single page failure never halts the run.
type Engine struct {
	cfg      Config
	frontier *Frontier
	gate     *Gate
	fetcher  Fetcher
	filter   *FilterChain
	handler  SiteHandler
	ingest   Ingestor
	recorder *Recorder
	logger   *zap.Logger

	mu    sync.Mutex
	state RunState
}

// NewEngine validates the configuration and wires the run. A ConfigError
// here aborts before any fetch begins.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	gate *Gate,
	handler SiteHandler,
	ingest Ingestor,
	logger *zap.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, NewConfigError("fetcher", "must be provided")
	}
	if gate == nil {
		return nil, NewConfigError("politeness gate", "must be provided")
	}
	if ingest == nil {
		return nil, NewConfigError("ingestor", "must be provided")
	}
	if handler == nil {
		handler = DefaultHandler{}
	}
	filter, err := NewFilterChain(cfg.AllowedDomains, cfg.ExcludedPatterns)
	if err != nil {
		return nil, NewConfigError("filters", err.Error())
	}
	return &Engine{
		cfg:      cfg,
		frontier: NewFrontier(cfg.MaxDepth, cfg.MaxRequests),
		gate:     gate,
		fetcher:  fetcher,
		filter:   filter,
		handler:  handler,
		ingest:   ingest,
		recorder: NewRecorder(cfg.CrawlType),
		logger:   logger,
	}, nil
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == "" {
		return RunStateIdle
	}
	return e.state
}

func (e *Engine) setState(s RunState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Snapshot returns the run counters as they stand; callable mid-run.
func (e *Engine) Snapshot() MetricsSnapshot {
	return e.recorder.Finalize()
}

// Run executes the crawl to completion or cancellation and returns the
// finalized metrics snapshot.
func (e *Engine) Run(ctx context.Context) (MetricsSnapshot, error) {
	e.setState(RunStateRunning)

	for _, seed := range e.cfg.StartURLs {
		if !e.frontier.Enqueue(Task{URL: seed, Depth: 0}) {
			e.logger.Warn("seed URL rejected", zap.String("url", seed))
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		e.setState(RunStateAborted)
		metrics.ObserveRun(string(RunStateAborted))
		snap := e.recorder.Finalize()
		return snap, fmt.Errorf("crawl run: %w", ctx.Err())
	}

	if err := e.ingest.Flush(ctx); err != nil {
		e.logger.Error("final ingest flush failed", zap.Error(err))
	}

	e.setState(RunStateCompleted)
	snap := e.recorder.Finalize()
	metrics.ObserveRun(string(RunStateCompleted))
	e.logger.Info("crawl run completed",
		zap.String("crawl_type", snap.CrawlType),
		zap.Int("urls_processed", snap.URLsProcessed),
		zap.Int("urls_skipped", snap.URLsSkipped),
		zap.Int("failed", snap.FailedRequests),
		zap.Float64("success_rate", snap.SuccessRate),
		zap.Float64("duration_seconds", snap.DurationSeconds),
	)
	return snap, nil
}

// worker pulls tasks until the frontier reports the run finished or the
// context ends. An empty queue with siblings still in flight only means
// more links may yet arrive, so the worker polls.
func (e *Engine) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, ok, done := e.frontier.Next()
		if done {
			return
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePollInterval):
			}
			continue
		}
		metrics.IncActiveWorkers()
		e.process(ctx, task)
		metrics.DecActiveWorkers()
		e.frontier.Done()
	}
}

func (e *Engine) process(ctx context.Context, task Task) {
	release, err := e.gate.Acquire(ctx, task.URL)
	if err != nil {
		if errors.Is(err, ErrRobotsDisallowed) {
			e.recorder.Skip()
			metrics.ObserveCrawlPage(task.URL, "skipped", 0)
			e.logger.Info("robots.txt skip", zap.String("url", task.URL))
			return
		}
		// Gate errors other than a robots skip only happen on cancellation;
		// the task is abandoned, not counted.
		return
	}

	doc, err := e.fetcher.Fetch(ctx, task.URL)
	release()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.recorder.Failure()
		metrics.ObserveCrawlPage(task.URL, "failed", 0)
		e.logger.Warn("fetch failed",
			zap.String("url", task.URL),
			zap.Int("depth", task.Depth),
			zap.Error(err),
		)
		return
	}

	e.enqueueLinks(task, doc)

	if err := e.ingest.Ingest(ctx, doc); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.recorder.Failure()
		metrics.ObserveCrawlPage(task.URL, "failed", doc.ContentLength())
		e.logger.Error("ingest failed", zap.String("url", task.URL), zap.Error(err))
		return
	}

	e.recorder.Success()
	metrics.ObserveCrawlPage(task.URL, "success", doc.ContentLength())
	e.logger.Debug("page processed",
		zap.String("url", task.URL),
		zap.Int("depth", task.Depth),
		zap.Int("links", len(doc.Links)),
	)
}

func (e *Engine) enqueueLinks(task Task, doc Document) {
	if task.Depth >= e.cfg.MaxDepth {
		return
	}
	for _, link := range e.handler.ParseLinks(doc) {
		if !e.filter.Accept(link) {
			continue
		}
		e.frontier.Enqueue(Task{
			URL:            link,
			Depth:          task.Depth + 1,
			DiscoveredFrom: task.URL,
		})
	}
}
