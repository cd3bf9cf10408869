package persist

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend keeps values for the life of the process.
type MemoryBackend struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return slices.Clone(v), ok, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = slices.Clone(data)
	b.saves++
	return nil
}

// Saves reports how many times Save was called.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Close implements Backend.
func (b *MemoryBackend) Close() error { return nil }
