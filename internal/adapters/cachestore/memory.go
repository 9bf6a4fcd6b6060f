package cachestore

import (
	"context"
	"slices"
	"sync"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
)

var _ ports.CacheStore = (*MemoryStore)(nil)

type memoryKey struct {
	kind domain.CacheKind
	fp   domain.Fingerprint
}

// MemoryStore keeps cache entries for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryKey]domain.CacheEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[memoryKey]domain.CacheEntry)}
}

// Get returns a copy of the entry for the fingerprint, or nil, nil when absent.
func (s *MemoryStore) Get(_ context.Context, kind domain.CacheKind, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[memoryKey{kind: kind, fp: fp}]
	if !ok {
		return nil, nil
	}
	e.Value = slices.Clone(e.Value)
	e.Paths = slices.Clone(e.Paths)
	return &e, nil
}

// Put stores a copy of the entry, replacing any previous one.
func (s *MemoryStore) Put(_ context.Context, entry domain.CacheEntry) error {
	entry.Value = slices.Clone(entry.Value)
	entry.Paths = slices.Clone(entry.Paths)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memoryKey{kind: entry.Kind, fp: entry.Fingerprint}] = entry
	return nil
}

// Delete removes the entry if present.
func (s *MemoryStore) Delete(_ context.Context, kind domain.CacheKind, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memoryKey{kind: kind, fp: fp})
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close does nothing.
func (s *MemoryStore) Close() error {
	return nil
}
