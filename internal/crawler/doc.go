// Package crawler implements the shared crawl engine: frontier, politeness
// gate, filter chain, fetcher and the run orchestrator.
package crawler
