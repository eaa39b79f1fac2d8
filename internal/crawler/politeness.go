package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taxrag/tax-rag-crawler/internal/metrics"
)

// Gate serializes access to target hosts: robots.txt permission, a
// randomized per-domain delay between MinDelay and MaxDelay, a global
// requests-per-minute limiter, and a concurrency semaphore. Acquire blocks
// until a slot is available; it never drops a task, only delays it.
type Gate struct {
	robots  RobotsPolicy
	limiter *rate.Limiter
	sem     chan struct{}

	mu       sync.Mutex
	lastHit  map[string]time.Time
	minDelay time.Duration
	maxDelay time.Duration
}

// NewGate builds a politeness gate from the run configuration.
func NewGate(cfg Config, robots RobotsPolicy) *Gate {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Gate{
		robots:   robots,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		sem:      make(chan struct{}, cfg.MaxConcurrency),
		lastHit:  make(map[string]time.Time),
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
	}
}

// Acquire blocks until the task may fetch rawURL, returning a release
// function for the concurrency slot. ErrRobotsDisallowed means the task is
// a terminal skip, not a failure.
func (g *Gate) Acquire(ctx context.Context, rawURL string) (func(), error) {
	if !g.robots.Allowed(ctx, rawURL) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("politeness gate: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire concurrency slot: %w", ctx.Err())
	}
	release := func() { <-g.sem }

	start := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		release()
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if err := g.waitDomain(ctx, hostOf(rawURL)); err != nil {
		release()
		return nil, err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessDelay(hostOf(rawURL), waited)
	}
	return release, nil
}

// waitDomain sleeps until the per-domain delay window since the last request
// to host has elapsed. The delay is randomized within [minDelay, maxDelay]
// so request timing does not look mechanical.
func (g *Gate) waitDomain(ctx context.Context, host string) error {
	if host == "" || g.maxDelay <= 0 {
		return nil
	}

	delay := g.minDelay
	if spread := g.maxDelay - g.minDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread) + 1))
	}

	g.mu.Lock()
	now := time.Now()
	next := g.lastHit[host].Add(delay)
	if next.Before(now) {
		next = now
	}
	g.lastHit[host] = next
	g.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("domain delay wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
