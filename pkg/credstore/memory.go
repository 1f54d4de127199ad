package credstore

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend keeps the record in process memory. Used by the "memory"
// driver and in tests.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: map[string]string{}}
}

func (m *MemoryBackend) Get(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.values), nil
}

func (m *MemoryBackend) Put(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = maps.Clone(values)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
