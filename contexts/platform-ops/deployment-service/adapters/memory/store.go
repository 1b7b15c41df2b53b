package memory

import (
	"context"
	"sync"
	"time"

	"basehub/contexts/platform-ops/deployment-service/ports"
)

// Store holds the active remap table in memory.
type Store struct {
	mu     sync.RWMutex
	table  ports.RemapTable
	loaded bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Current(_ context.Context) (ports.RemapTable, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table, s.loaded, nil
}

func (s *Store) Replace(_ context.Context, table ports.RemapTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
	s.loaded = true
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}
