package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Payload     []byte
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type SagaState string

const (
	SagaPending      SagaState = "pending"
	SagaRunning      SagaState = "running"
	SagaCompleted    SagaState = "completed"
	SagaCompensating SagaState = "compensating"
	SagaCompensated  SagaState = "compensated"
	SagaFailed       SagaState = "failed"
)

type StepDirection string

const (
	DirectionForward    StepDirection = "forward"
	DirectionCompensate StepDirection = "compensate"
)

type SagaInstance struct {
	ID          string
	Name        string
	State       SagaState
	CurrentStep int
	Payload     []byte
	StartedAt   time.Time
	FinishedAt  time.Time
	Error       string
}

type StepRecord struct {
	SagaID    string
	Step      string
	Direction StepDirection
	Succeeded bool
	At        time.Time
	Detail    string
}

type ListSagasFilter struct {
	Name  string
	State SagaState
	Limit int
}

type SagaStore interface {
	CreateInstance(ctx context.Context, instance SagaInstance) error
	GetInstance(ctx context.Context, sagaID string) (SagaInstance, error)
	UpdateInstance(ctx context.Context, instance SagaInstance) error
	ListInstances(ctx context.Context, filter ListSagasFilter) ([]SagaInstance, error)
	AppendStepRecord(ctx context.Context, record StepRecord) error
	ListStepRecords(ctx context.Context, sagaID string) ([]StepRecord, error)
}

// ProvisionGateway is the slice of the data plane the built-in provisioning
// saga works against.
type ProvisionGateway interface {
	CheckTable(ctx context.Context, baseID string, table string) error
	CreateRecord(ctx context.Context, baseID string, table string, fields map[string]any) (string, error)
	DeleteRecord(ctx context.Context, baseID string, table string, recordID string) error
	InvalidateSchema(ctx context.Context, baseID string) error
}
