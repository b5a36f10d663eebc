package alert

import (
	"strings"
	"sync"
	"time"
)

// StateStore records which one-shot suppression keys have fired.
// Implementations must be safe for concurrent use.
type StateStore interface {
	// Has reports whether the key has been marked.
	Has(key string) (bool, error)
	// Mark records the key as fired at the given time. Marking an
	// already marked key is a no-op.
	Mark(key string, at time.Time) error
	// Clear removes a single key so it can fire again.
	Clear(key string) error
	// ClearPrefix removes every key with the given prefix.
	ClearPrefix(prefix string) error
	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore is the default StateStore. Keys live for the process
// lifetime only; a restart forgets everything that fired.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]time.Time)}
}

func (s *MemoryStore) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStore) Mark(key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		s.keys[key] = at
	}
	return nil
}

func (s *MemoryStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *MemoryStore) ClearPrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			delete(s.keys, k)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
