// Package publisher emits ingestion events so downstream consumers (index
// refreshers, notification hooks) learn about newly stored documents.
package publisher

import (
	"context"
	"sync"
)

// Event describes one ingested document.
type Event struct {
	RunID     string   `json:"run_id"`
	CrawlType string   `json:"crawl_type"`
	URL       string   `json:"url"`
	PointIDs  []string `json:"point_ids"`
	Timestamp string   `json:"timestamp"`
}

// Publisher pushes events to a topic.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
	Close() error
}

// MemoryPublisher records events in-memory. Test helper and default when no
// topic is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.
func (m *MemoryPublisher) Publish(_ context.Context, event Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return "memory-msg", nil
}

// Events returns the published events.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Close implements Publisher.
func (m *MemoryPublisher) Close() error { return nil }
