package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryProvider stores snapshots in-memory. Test and dry-run helper.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryProvider creates an empty in-memory archive.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

// Save stores a copy of the data and returns a memory:// URI.
func (m *MemoryProvider) Save(_ context.Context, objectName string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[objectName] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", objectName), nil
}

// Get returns a stored object.
func (m *MemoryProvider) Get(objectName string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[objectName]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryProvider) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close implements Provider.
func (m *MemoryProvider) Close() error { return nil }
