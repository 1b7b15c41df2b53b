package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "basehub/contexts/platform-ops/saga-orchestrator/domain/errors"
	"basehub/contexts/platform-ops/saga-orchestrator/ports"
)

type Store struct {
	mu          sync.RWMutex
	instances   map[string]ports.SagaInstance
	records     map[string][]ports.StepRecord
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		instances:   make(map[string]ports.SagaInstance),
		records:     make(map[string][]ports.StepRecord),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) CreateInstance(_ context.Context, instance ports.SagaInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[instance.ID] = instance
	return nil
}

func (s *Store) GetInstance(_ context.Context, sagaID string) (ports.SagaInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[sagaID]
	if !ok {
		return ports.SagaInstance{}, domainerrors.ErrSagaNotFound
	}
	return instance, nil
}

func (s *Store) UpdateInstance(_ context.Context, instance ports.SagaInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instance.ID]; !ok {
		return domainerrors.ErrSagaNotFound
	}
	s.instances[instance.ID] = instance
	return nil
}

func (s *Store) ListInstances(_ context.Context, filter ports.ListSagasFilter) ([]ports.SagaInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instances := make([]ports.SagaInstance, 0, len(s.instances))
	for _, instance := range s.instances {
		if filter.Name != "" && instance.Name != filter.Name {
			continue
		}
		if filter.State != "" && instance.State != filter.State {
			continue
		}
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(i, j int) bool {
		if instances[i].StartedAt.Equal(instances[j].StartedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].StartedAt.Before(instances[j].StartedAt)
	})
	if filter.Limit > 0 && len(instances) > filter.Limit {
		instances = instances[:filter.Limit]
	}
	return instances, nil
}

func (s *Store) AppendStepRecord(_ context.Context, record ports.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.SagaID] = append(s.records[record.SagaID], record)
	return nil
}

func (s *Store) ListStepRecords(_ context.Context, sagaID string) ([]ports.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.StepRecord(nil), s.records[sagaID]...), nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[key]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
