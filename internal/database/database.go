// Package database persists run history: one row per crawl run plus one row
// per ingested document. The crawler works without a database; history is
// only recorded when a DSN is configured.
package database

import (
	"context"
	"sync"
	"time"

	"github.com/taxrag/tax-rag-crawler/internal/crawler"
)

// DocumentRecord is the per-document row written after a successful ingest.
type DocumentRecord struct {
	RunID      string
	URL        string
	Title      string
	PointIDs   []string
	ArchiveURI string
	FetchedAt  time.Time
}

// Provider is the run-history boundary.
type Provider interface {
	// SaveRun persists the run summary and returns the run row's ID.
	SaveRun(ctx context.Context, snap crawler.MetricsSnapshot) (string, error)

	// SaveDocument persists one ingested document record.
	SaveDocument(ctx context.Context, rec DocumentRecord) error

	// Close releases the underlying connections.
	Close()
}

// MemoryProvider keeps history in-memory. Used in tests and when no DSN is
// configured.
type MemoryProvider struct {
	mu        sync.Mutex
	runs      []crawler.MetricsSnapshot
	documents []DocumentRecord
}

// NewMemoryProvider creates an empty history.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

// SaveRun implements Provider.
func (m *MemoryProvider) SaveRun(_ context.Context, snap crawler.MetricsSnapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, snap)
	return "memory-run", nil
}

// SaveDocument implements Provider.
func (m *MemoryProvider) SaveDocument(_ context.Context, rec DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, rec)
	return nil
}

// Close implements Provider.
func (m *MemoryProvider) Close() {}

// Runs returns the recorded run snapshots.
func (m *MemoryProvider) Runs() []crawler.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]crawler.MetricsSnapshot(nil), m.runs...)
}

// Documents returns the recorded document rows.
func (m *MemoryProvider) Documents() []DocumentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DocumentRecord(nil), m.documents...)
}
