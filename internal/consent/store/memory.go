// Package store persists consent records. Each visitor has a small key/value
// namespace, the server-side equivalent of the browser's local storage.
package store

import (
	"context"
	"sync"

	"sitepulse/pkg/platform/sentinel"
)

// InMemoryStore keeps records in process memory. Records never expire.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string][]byte)}
}

func (s *InMemoryStore) Get(_ context.Context, visitorID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[visitorID][key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *InMemoryStore) Set(_ context.Context, visitorID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.records[visitorID]
	if !ok {
		ns = make(map[string][]byte)
		s.records[visitorID] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, visitorID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[visitorID], key)
	if len(s.records[visitorID]) == 0 {
		delete(s.records, visitorID)
	}
	return nil
}
