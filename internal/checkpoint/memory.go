package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*Checkpoint
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*Checkpoint)}
}

// Save stores cp keyed by its crawl id.
func (s *MemoryStore) Save(_ context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[cp.CrawlID] = cp
	return nil
}

// Load returns the stored checkpoint or ErrNotFound.
func (s *MemoryStore) Load(_ context.Context, crawlID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.blobs[crawlID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return cp, nil
}

// Clear removes any stored checkpoint for crawlID.
func (s *MemoryStore) Clear(_ context.Context, crawlID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, crawlID)
	return nil
}
