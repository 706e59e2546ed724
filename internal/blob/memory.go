package blob

import (
	"context"
	"sync"
)

// MemoryStore is the in-process fallback used when no object storage is
// configured, and by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of the bytes under their content hash.
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	hash := ContentHash(data)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[hash] = cp
	s.mu.Unlock()
	return hash, nil
}

// Get returns the stored bytes for a hash.
func (s *MemoryStore) Get(_ context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}
