// Package memory keeps session records in process memory. It is used in
// tests and when SESSION_BACKEND=memory.
package memory

import (
	"context"
	"sync"

	"github.com/hongminglow/portal-gateway/internal/storage"
)

var _ storage.SessionRecords = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	records map[string]string
}

func New() *Store {
	return &Store{records: make(map[string]string)}
}

func (s *Store) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Save(_ context.Context, key, sealed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = sealed
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *Store) Close() error { return nil }
