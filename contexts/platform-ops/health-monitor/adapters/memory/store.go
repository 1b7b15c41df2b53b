package memory

import (
	"context"
	"sync"
	"time"

	"basehub/contexts/platform-ops/health-monitor/application"
	"basehub/contexts/platform-ops/health-monitor/ports"
)

// maxHistory bounds per-service probe history.
const maxHistory = 200

type Store struct {
	mu       sync.RWMutex
	statuses map[string]ports.ServiceStatus
	history  map[string][]ports.ProbeResult
}

func NewStore() *Store {
	return &Store{
		statuses: make(map[string]ports.ServiceStatus),
		history:  make(map[string][]ports.ProbeResult),
	}
}

func (s *Store) Record(_ context.Context, result ports.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[result.Service] = application.NextStatus(s.statuses[result.Service], result)

	history := append(s.history[result.Service], result)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	s.history[result.Service] = history
	return nil
}

func (s *Store) Status(_ context.Context, service string) (ports.ServiceStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[service]
	return status, ok, nil
}

func (s *Store) Statuses(_ context.Context) ([]ports.ServiceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]ports.ServiceStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *Store) History(_ context.Context, service string, limit int) ([]ports.ProbeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.history[service]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	// Newest first.
	out := make([]ports.ProbeResult, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}
