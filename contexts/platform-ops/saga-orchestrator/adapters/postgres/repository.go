package postgresadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainerrors "basehub/contexts/platform-ops/saga-orchestrator/domain/errors"
	"basehub/contexts/platform-ops/saga-orchestrator/ports"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type sagaModel struct {
	SagaID      string     `gorm:"column:saga_id;primaryKey"`
	Name        string     `gorm:"column:name;index"`
	State       string     `gorm:"column:state;index"`
	CurrentStep int        `gorm:"column:current_step"`
	Payload     []byte     `gorm:"column:payload"`
	StartedAt   time.Time  `gorm:"column:started_at;index"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
	Error       string     `gorm:"column:error"`
}

func (sagaModel) TableName() string { return "saga_instances" }

type stepRecordModel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	SagaID    string    `gorm:"column:saga_id;index"`
	Step      string    `gorm:"column:step"`
	Direction string    `gorm:"column:direction"`
	Succeeded bool      `gorm:"column:succeeded"`
	At        time.Time `gorm:"column:occurred_at"`
	Detail    string    `gorm:"column:detail"`
}

func (stepRecordModel) TableName() string { return "saga_step_records" }

type idempotencyModel struct {
	Key         string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index"`
}

func (idempotencyModel) TableName() string { return "saga_idempotency" }

// Models lists the gorm models this adapter owns, for platform migration.
func Models() []any {
	return []any{&sagaModel{}, &stepRecordModel{}, &idempotencyModel{}}
}

func (r *Repository) CreateInstance(ctx context.Context, instance ports.SagaInstance) error {
	row := sagaRow(instance)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) GetInstance(ctx context.Context, sagaID string) (ports.SagaInstance, error) {
	var row sagaModel
	err := r.db.WithContext(ctx).
		Where("saga_id = ?", strings.TrimSpace(sagaID)).
		First(&row).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ports.SagaInstance{}, domainerrors.ErrSagaNotFound
		}
		return ports.SagaInstance{}, err
	}
	return sagaInstance(row), nil
}

func (r *Repository) UpdateInstance(ctx context.Context, instance ports.SagaInstance) error {
	row := sagaRow(instance)
	result := r.db.WithContext(ctx).
		Model(&sagaModel{}).
		Where("saga_id = ?", instance.ID).
		Updates(map[string]any{
			"state":        row.State,
			"current_step": row.CurrentStep,
			"payload":      row.Payload,
			"finished_at":  row.FinishedAt,
			"error":        row.Error,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrSagaNotFound
	}
	return nil
}

func (r *Repository) ListInstances(ctx context.Context, filter ports.ListSagasFilter) ([]ports.SagaInstance, error) {
	tx := r.db.WithContext(ctx).Model(&sagaModel{}).Order("started_at ASC, saga_id ASC")
	if filter.Name != "" {
		tx = tx.Where("name = ?", filter.Name)
	}
	if filter.State != "" {
		tx = tx.Where("state = ?", string(filter.State))
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var rows []sagaModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	instances := make([]ports.SagaInstance, 0, len(rows))
	for _, row := range rows {
		instances = append(instances, sagaInstance(row))
	}
	return instances, nil
}

func (r *Repository) AppendStepRecord(ctx context.Context, record ports.StepRecord) error {
	row := stepRecordModel{
		SagaID:    record.SagaID,
		Step:      record.Step,
		Direction: string(record.Direction),
		Succeeded: record.Succeeded,
		At:        record.At.UTC(),
		Detail:    record.Detail,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListStepRecords(ctx context.Context, sagaID string) ([]ports.StepRecord, error) {
	var rows []stepRecordModel
	err := r.db.WithContext(ctx).
		Where("saga_id = ?", strings.TrimSpace(sagaID)).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	records := make([]ports.StepRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ports.StepRecord{
			SagaID:    row.SagaID,
			Step:      row.Step,
			Direction: ports.StepDirection(row.Direction),
			Succeeded: row.Succeeded,
			At:        row.At,
			Detail:    row.Detail,
		})
	}
	return records, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND expires_at > ?", strings.TrimSpace(key), now.UTC()).
		First(&row).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		Payload:     row.Payload,
		ExpiresAt:   row.ExpiresAt,
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		Payload:     record.Payload,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

func sagaRow(instance ports.SagaInstance) sagaModel {
	row := sagaModel{
		SagaID:      instance.ID,
		Name:        instance.Name,
		State:       string(instance.State),
		CurrentStep: instance.CurrentStep,
		Payload:     instance.Payload,
		StartedAt:   instance.StartedAt.UTC(),
		Error:       instance.Error,
	}
	if !instance.FinishedAt.IsZero() {
		finished := instance.FinishedAt.UTC()
		row.FinishedAt = &finished
	}
	return row
}

func sagaInstance(row sagaModel) ports.SagaInstance {
	instance := ports.SagaInstance{
		ID:          row.SagaID,
		Name:        row.Name,
		State:       ports.SagaState(row.State),
		CurrentStep: row.CurrentStep,
		Payload:     row.Payload,
		StartedAt:   row.StartedAt,
		Error:       row.Error,
	}
	if row.FinishedAt != nil {
		instance.FinishedAt = *row.FinishedAt
	}
	return instance
}
