package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the latest result in process memory. Take empties it.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
	ok  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append([]byte(nil), raw...)
	m.ok = true
	return nil
}

func (m *MemoryStore) Take(_ context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.raw, m.ok
	m.raw, m.ok = nil, false
	return raw, ok, nil
}
