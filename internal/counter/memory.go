package counter

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. It is meant as the fallback
// when no shared store is configured: values are not shared between
// processes and TTLs are accepted but never swept.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
	flags  map[string]bool
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts: make(map[string]int),
		flags:  make(map[string]bool),
	}
}

func (m *MemoryStore) IncrementAndGet(_ context.Context, key string, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemoryStore) GetCurrent(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

// Reset deletes both the counter and the flag stored under key.
func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, key)
	delete(m.flags, key)
	return nil
}

func (m *MemoryStore) SetFlag(_ context.Context, key string, value bool, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !value {
		delete(m.flags, key)
		return nil
	}
	m.flags[key] = true
	return nil
}

func (m *MemoryStore) GetFlag(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[key], nil
}
