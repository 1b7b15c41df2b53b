package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basehub/contexts/platform-ops/saga-orchestrator/adapters/memory"
	domainerrors "basehub/contexts/platform-ops/saga-orchestrator/domain/errors"
	"basehub/contexts/platform-ops/saga-orchestrator/ports"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	service := &Service{
		Store:       store,
		Idempotency: store,
		Clock:       store,
		IDGen:       store,
	}
	return service, store
}

// journalStep records executions so transitions can be asserted in order.
func journalStep(name string, journal *[]string, failForward bool, failCompensate bool) SagaStep {
	return SagaStep{
		Name: name,
		Forward: func(_ context.Context, _ map[string]any) error {
			*journal = append(*journal, "forward:"+name)
			if failForward {
				return fmt.Errorf("%s blew up", name)
			}
			return nil
		},
		Compensate: func(_ context.Context, _ map[string]any) error {
			*journal = append(*journal, "compensate:"+name)
			if failCompensate {
				return fmt.Errorf("%s compensation blew up", name)
			}
			return nil
		},
	}
}

func TestStartSagaUnknownDefinition(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.StartSaga(context.Background(), "key-1", "ghost", nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnknownDefinition)
}

func TestStartSagaRequiresIdempotencyKey(t *testing.T) {
	service, _ := newTestService(t)
	service.Register(SagaDefinition{Name: "noop"})
	_, err := service.StartSaga(context.Background(), "", "noop", nil)
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyKeyRequired)
}

func TestStartSagaReplaysOnSameKey(t *testing.T) {
	service, _ := newTestService(t)
	var journal []string
	service.Register(SagaDefinition{Name: "one-step", Steps: []SagaStep{journalStep("a", &journal, false, false)}})

	first, err := service.StartSaga(context.Background(), "key-1", "one-step", nil)
	require.NoError(t, err)
	second, err := service.StartSaga(context.Background(), "key-1", "one-step", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	instances, err := service.ListSagas(context.Background(), ports.ListSagasFilter{})
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestStartSagaConflictsOnKeyReuse(t *testing.T) {
	service, _ := newTestService(t)
	service.Register(SagaDefinition{Name: "noop"})
	_, err := service.StartSaga(context.Background(), "key-1", "noop", map[string]any{"a": "1"})
	require.NoError(t, err)
	_, err = service.StartSaga(context.Background(), "key-1", "noop", map[string]any{"a": "2"})
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)
}

func TestRunOnceAdvancesOneStepPerSweep(t *testing.T) {
	service, _ := newTestService(t)
	var journal []string
	service.Register(SagaDefinition{Name: "two-step", Steps: []SagaStep{
		journalStep("a", &journal, false, false),
		journalStep("b", &journal, false, false),
	}})

	started, err := service.StartSaga(context.Background(), "key-1", "two-step", nil)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaPending, started.State)

	_, err = service.RunOnce(context.Background())
	require.NoError(t, err)
	instance, _, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaRunning, instance.State)
	assert.Equal(t, 1, instance.CurrentStep)
	assert.Equal(t, []string{"forward:a"}, journal)

	_, err = service.RunOnce(context.Background())
	require.NoError(t, err)
	instance, records, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaCompleted, instance.State)
	assert.False(t, instance.FinishedAt.IsZero())
	assert.Equal(t, []string{"forward:a", "forward:b"}, journal)
	require.Len(t, records, 2)
	assert.True(t, records[0].Succeeded)
	assert.Equal(t, ports.DirectionForward, records[1].Direction)
}

func TestForwardFailureCompensatesInReverse(t *testing.T) {
	service, _ := newTestService(t)
	var journal []string
	service.Register(SagaDefinition{Name: "doomed", Steps: []SagaStep{
		journalStep("a", &journal, false, false),
		journalStep("b", &journal, false, false),
		journalStep("c", &journal, true, false),
	}})

	started, err := service.StartSaga(context.Background(), "key-1", "doomed", nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = service.RunOnce(context.Background())
		require.NoError(t, err)
	}

	instance, records, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaCompensated, instance.State)
	assert.Contains(t, instance.Error, "step c failed")
	assert.Equal(t, []string{
		"forward:a", "forward:b", "forward:c",
		"compensate:b", "compensate:a",
	}, journal)

	// The failed forward and both compensations are all journaled.
	require.Len(t, records, 5)
	assert.False(t, records[2].Succeeded)
	assert.Equal(t, ports.DirectionCompensate, records[3].Direction)
	assert.Equal(t, "b", records[3].Step)
	assert.Equal(t, "a", records[4].Step)
}

func TestCompensationFailureMarksSagaFailed(t *testing.T) {
	service, _ := newTestService(t)
	var journal []string
	service.Register(SagaDefinition{Name: "cursed", Steps: []SagaStep{
		journalStep("a", &journal, false, true),
		journalStep("b", &journal, true, false),
	}})

	started, err := service.StartSaga(context.Background(), "key-1", "cursed", nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = service.RunOnce(context.Background())
		require.NoError(t, err)
	}

	instance, _, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaFailed, instance.State)
	assert.Contains(t, instance.Error, "compensation a failed")
}

func TestPayloadEnrichmentSurvivesSweeps(t *testing.T) {
	service, _ := newTestService(t)
	service.Register(SagaDefinition{Name: "count", Steps: []SagaStep{
		{
			Name: "write",
			Forward: func(_ context.Context, payload map[string]any) error {
				payload["written"] = "yes"
				return nil
			},
		},
		{
			Name: "read",
			Forward: func(_ context.Context, payload map[string]any) error {
				if payload["written"] != "yes" {
					return errors.New("enrichment lost")
				}
				return nil
			},
		},
	}})

	started, err := service.StartSaga(context.Background(), "key-1", "count", nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = service.RunOnce(context.Background())
		require.NoError(t, err)
	}

	instance, _, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaCompleted, instance.State)
}

func TestGetSagaNotFound(t *testing.T) {
	service, _ := newTestService(t)
	_, _, err := service.GetSaga(context.Background(), "missing")
	assert.ErrorIs(t, err, domainerrors.ErrSagaNotFound)
}

func TestListSagasFiltersByState(t *testing.T) {
	service, _ := newTestService(t)
	service.Register(SagaDefinition{Name: "noop"})

	_, err := service.StartSaga(context.Background(), "key-1", "noop", nil)
	require.NoError(t, err)
	_, err = service.StartSaga(context.Background(), "key-2", "noop", map[string]any{"n": "2"})
	require.NoError(t, err)

	pending, err := service.ListSagas(context.Background(), ports.ListSagasFilter{State: ports.SagaPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = service.RunOnce(context.Background())
	require.NoError(t, err)

	completed, err := service.ListSagas(context.Background(), ports.ListSagasFilter{State: ports.SagaCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)
}

type fakeGateway struct {
	tables      map[string]bool
	created     []string
	deleted     []string
	invalidated int
	createErr   error
	nextID      int
}

func (f *fakeGateway) CheckTable(_ context.Context, _ string, table string) error {
	if !f.tables[table] {
		return fmt.Errorf("table %s not found", table)
	}
	return nil
}

func (f *fakeGateway) CreateRecord(_ context.Context, _ string, _ string, _ map[string]any) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("rec%03d", f.nextID)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeGateway) DeleteRecord(_ context.Context, _ string, _ string, recordID string) error {
	f.deleted = append(f.deleted, recordID)
	return nil
}

func (f *fakeGateway) InvalidateSchema(_ context.Context, _ string) error {
	f.invalidated++
	return nil
}

func provisionPayload() map[string]any {
	return map[string]any{
		"base_id": "appXXXXXXXXXXXXXX",
		"table":   "Projects",
		"seeds": []any{
			map[string]any{"Name": "Alpha"},
			map[string]any{"Name": "Beta"},
		},
	}
}

func TestProvisionBaseHappyPath(t *testing.T) {
	service, _ := newTestService(t)
	gateway := &fakeGateway{tables: map[string]bool{"Projects": true}}
	service.Register(ProvisionBaseSaga(gateway))

	started, err := service.StartSaga(context.Background(), "key-1", "provision-base", provisionPayload())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = service.RunOnce(context.Background())
		require.NoError(t, err)
	}

	instance, _, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaCompleted, instance.State)
	assert.Len(t, gateway.created, 2)
	assert.Equal(t, 1, gateway.invalidated)
	assert.Empty(t, gateway.deleted)
}

func TestProvisionBaseMissingTableCompensatesNothing(t *testing.T) {
	service, _ := newTestService(t)
	gateway := &fakeGateway{tables: map[string]bool{}}
	service.Register(ProvisionBaseSaga(gateway))

	started, err := service.StartSaga(context.Background(), "key-1", "provision-base", provisionPayload())
	require.NoError(t, err)
	_, err = service.RunOnce(context.Background())
	require.NoError(t, err)

	instance, _, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaCompensated, instance.State)
	assert.Empty(t, gateway.created)
	assert.Empty(t, gateway.deleted)
}

func TestProvisionBaseSeedsAreDeletedOnLaterFailure(t *testing.T) {
	service, _ := newTestService(t)
	gateway := &fakeGateway{tables: map[string]bool{"Projects": true}}
	definition := ProvisionBaseSaga(gateway)
	// Make the final step fail so the seeded records must be removed.
	definition.Steps[2].Forward = func(_ context.Context, _ map[string]any) error {
		return errors.New("cache refresh rejected")
	}
	service.Register(definition)

	started, err := service.StartSaga(context.Background(), "key-1", "provision-base", provisionPayload())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = service.RunOnce(context.Background())
		require.NoError(t, err)
	}

	instance, _, err := service.GetSaga(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.SagaCompensated, instance.State)
	assert.Equal(t, []string{"rec001", "rec002"}, gateway.deleted)
}
