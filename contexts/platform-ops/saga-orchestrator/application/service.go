package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "basehub/contexts/platform-ops/saga-orchestrator/domain/errors"
	"basehub/contexts/platform-ops/saga-orchestrator/ports"
)

const defaultIdemTTL = 7 * 24 * time.Hour

type Service struct {
	Store       ports.SagaStore
	Idempotency ports.IdempotencyStore
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger

	IdempotencyTTL time.Duration

	definitions map[string]SagaDefinition
}

// Register makes a definition startable. Registering the same name again
// replaces it.
func (s *Service) Register(definition SagaDefinition) {
	if s.definitions == nil {
		s.definitions = make(map[string]SagaDefinition)
	}
	s.definitions[definition.Name] = definition
}

func (s *Service) Definition(name string) (SagaDefinition, bool) {
	definition, ok := s.definitions[name]
	return definition, ok
}

// StartSaga creates a pending instance; the worker advances it.
func (s *Service) StartSaga(ctx context.Context, idempotencyKey string, name string, payload map[string]any) (ports.SagaInstance, error) {
	var out ports.SagaInstance
	if strings.TrimSpace(idempotencyKey) == "" {
		return out, domainerrors.ErrIdempotencyKeyRequired
	}
	if _, ok := s.definitions[name]; !ok {
		return out, domainerrors.ErrUnknownDefinition
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("%w: payload not serializable", domainerrors.ErrInvalidRequest)
	}

	requestHash := hashStrings("saga_start", name, string(rawPayload))
	err = s.runIdempotent(
		ctx,
		idempotencyKey,
		requestHash,
		func(raw []byte) error { return json.Unmarshal(raw, &out) },
		func() ([]byte, error) {
			sagaID, err := s.IDGen.NewID(ctx)
			if err != nil {
				return nil, err
			}
			instance := ports.SagaInstance{
				ID:        sagaID,
				Name:      name,
				State:     ports.SagaPending,
				Payload:   rawPayload,
				StartedAt: s.now(),
			}
			if err := s.Store.CreateInstance(ctx, instance); err != nil {
				return nil, err
			}
			resolveLogger(s.Logger).Info("saga started",
				"event", "saga_started",
				"module", "platform-ops/saga-orchestrator",
				"layer", "application",
				"saga_id", sagaID,
				"saga", name,
			)
			return json.Marshal(instance)
		},
	)
	return out, err
}

func (s *Service) GetSaga(ctx context.Context, sagaID string) (ports.SagaInstance, []ports.StepRecord, error) {
	if strings.TrimSpace(sagaID) == "" {
		return ports.SagaInstance{}, nil, domainerrors.ErrInvalidRequest
	}
	instance, err := s.Store.GetInstance(ctx, sagaID)
	if err != nil {
		return ports.SagaInstance{}, nil, err
	}
	records, err := s.Store.ListStepRecords(ctx, sagaID)
	if err != nil {
		return ports.SagaInstance{}, nil, err
	}
	return instance, records, nil
}

func (s *Service) ListSagas(ctx context.Context, filter ports.ListSagasFilter) ([]ports.SagaInstance, error) {
	return s.Store.ListInstances(ctx, filter)
}

// RunOnce advances every pending or running saga by one forward step. A
// forward failure triggers the full compensation cascade in the same pass.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	// Snapshot the runnable set first so a saga promoted from pending to
	// running is not advanced twice in one sweep.
	var runnable []ports.SagaInstance
	for _, state := range []ports.SagaState{ports.SagaPending, ports.SagaRunning} {
		instances, err := s.Store.ListInstances(ctx, ports.ListSagasFilter{State: state})
		if err != nil {
			return 0, err
		}
		runnable = append(runnable, instances...)
	}

	advanced := 0
	for _, instance := range runnable {
		if err := s.advance(ctx, instance); err != nil {
			return advanced, err
		}
		advanced++
	}
	return advanced, nil
}

// advance executes one forward step. Transitions are persisted before the
// step runs so a crash never re-labels a saga as untouched.
func (s *Service) advance(ctx context.Context, instance ports.SagaInstance) error {
	definition, ok := s.definitions[instance.Name]
	if !ok {
		instance.State = ports.SagaFailed
		instance.Error = "definition no longer registered"
		instance.FinishedAt = s.now()
		return s.Store.UpdateInstance(ctx, instance)
	}

	if instance.CurrentStep >= len(definition.Steps) {
		instance.State = ports.SagaCompleted
		instance.FinishedAt = s.now()
		return s.Store.UpdateInstance(ctx, instance)
	}

	if instance.State == ports.SagaPending {
		instance.State = ports.SagaRunning
		if err := s.Store.UpdateInstance(ctx, instance); err != nil {
			return err
		}
	}

	payload, err := decodePayload(instance.Payload)
	if err != nil {
		return s.compensate(ctx, instance, definition, fmt.Sprintf("payload decode failed: %v", err))
	}

	step := definition.Steps[instance.CurrentStep]
	if err := step.Forward(ctx, payload); err != nil {
		if recErr := s.recordStep(ctx, instance.ID, step.Name, ports.DirectionForward, false, err.Error()); recErr != nil {
			return recErr
		}
		// Keep whatever the failed step already wrote into the payload so
		// compensations and operators can see it.
		if raw, marshalErr := json.Marshal(payload); marshalErr == nil {
			instance.Payload = raw
		}
		return s.compensate(ctx, instance, definition, fmt.Sprintf("step %s failed: %v", step.Name, err))
	}
	if err := s.recordStep(ctx, instance.ID, step.Name, ports.DirectionForward, true, ""); err != nil {
		return err
	}

	// Steps may enrich the payload for later steps and compensations.
	if raw, err := json.Marshal(payload); err == nil {
		instance.Payload = raw
	}
	instance.CurrentStep++
	if instance.CurrentStep == len(definition.Steps) {
		instance.State = ports.SagaCompleted
		instance.FinishedAt = s.now()
		resolveLogger(s.Logger).Info("saga completed",
			"event", "saga_completed",
			"module", "platform-ops/saga-orchestrator",
			"layer", "application",
			"saga_id", instance.ID,
			"saga", instance.Name,
		)
	}
	return s.Store.UpdateInstance(ctx, instance)
}

// compensate unwinds completed steps in reverse order.
func (s *Service) compensate(ctx context.Context, instance ports.SagaInstance, definition SagaDefinition, reason string) error {
	instance.State = ports.SagaCompensating
	instance.Error = reason
	if err := s.Store.UpdateInstance(ctx, instance); err != nil {
		return err
	}
	resolveLogger(s.Logger).Warn("saga compensating",
		"event", "saga_compensating",
		"module", "platform-ops/saga-orchestrator",
		"layer", "application",
		"saga_id", instance.ID,
		"saga", instance.Name,
		"reason", reason,
	)

	payload, err := decodePayload(instance.Payload)
	if err != nil {
		payload = make(map[string]any)
	}

	for i := instance.CurrentStep - 1; i >= 0; i-- {
		step := definition.Steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx, payload); err != nil {
			if recErr := s.recordStep(ctx, instance.ID, step.Name, ports.DirectionCompensate, false, err.Error()); recErr != nil {
				return recErr
			}
			instance.State = ports.SagaFailed
			instance.Error = fmt.Sprintf("%s; compensation %s failed: %v", reason, step.Name, err)
			instance.FinishedAt = s.now()
			return s.Store.UpdateInstance(ctx, instance)
		}
		if err := s.recordStep(ctx, instance.ID, step.Name, ports.DirectionCompensate, true, ""); err != nil {
			return err
		}
	}

	instance.State = ports.SagaCompensated
	instance.FinishedAt = s.now()
	return s.Store.UpdateInstance(ctx, instance)
}

func (s *Service) recordStep(ctx context.Context, sagaID string, step string, direction ports.StepDirection, succeeded bool, detail string) error {
	return s.Store.AppendStepRecord(ctx, ports.StepRecord{
		SagaID:    sagaID,
		Step:      step,
		Direction: direction,
		Succeeded: succeeded,
		At:        s.now(),
		Detail:    detail,
	})
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s *Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return defaultIdemTTL
	}
	return s.IdempotencyTTL
}

func (s *Service) runIdempotent(
	ctx context.Context,
	key string,
	requestHash string,
	decode func([]byte) error,
	exec func() ([]byte, error),
) error {
	now := s.now()
	record, found, err := s.Idempotency.Get(ctx, key, now)
	if err != nil {
		return err
	}
	if found {
		if record.RequestHash != requestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return decode(record.Payload)
	}

	payload, err := exec()
	if err != nil {
		return err
	}
	if err := s.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Payload:     payload,
		ExpiresAt:   now.Add(s.idempotencyTTL()),
	}); err != nil {
		return err
	}
	return decode(payload)
}

func hashStrings(values ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(values, "|")))
	return hex.EncodeToString(sum[:])
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
