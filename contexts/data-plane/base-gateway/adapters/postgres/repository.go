package postgresadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"basehub/contexts/data-plane/base-gateway/ports"
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

type idempotencyModel struct {
	Key         string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index"`
}

func (idempotencyModel) TableName() string { return "gateway_idempotency" }

type writeAuditModel struct {
	AuditID   string    `gorm:"column:audit_id;primaryKey"`
	BaseID    string    `gorm:"column:base_id;index"`
	TableRef  string    `gorm:"column:table_ref"`
	RecordID  string    `gorm:"column:record_id"`
	Operation string    `gorm:"column:operation"`
	At        time.Time `gorm:"column:occurred_at;index"`
}

func (writeAuditModel) TableName() string { return "gateway_write_audit" }

// Models lists the gorm models this adapter owns, for platform migration.
func Models() []any {
	return []any{&idempotencyModel{}, &writeAuditModel{}}
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

func (r *Repository) Append(ctx context.Context, entry ports.WriteAuditEntry) error {
	row := writeAuditModel{
		AuditID:   entry.AuditID,
		BaseID:    entry.BaseID,
		TableRef:  entry.Table,
		RecordID:  entry.RecordID,
		Operation: entry.Operation,
		At:        entry.At.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListByBase(ctx context.Context, baseID string, limit int) ([]ports.WriteAuditEntry, error) {
	tx := r.db.WithContext(ctx).
		Model(&writeAuditModel{}).
		Where("base_id = ?", strings.TrimSpace(baseID)).
		Order("occurred_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []writeAuditModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]ports.WriteAuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ports.WriteAuditEntry{
			AuditID:   row.AuditID,
			BaseID:    row.BaseID,
			Table:     row.TableRef,
			RecordID:  row.RecordID,
			Operation: row.Operation,
			At:        row.At,
		})
	}
	return entries, nil
}
