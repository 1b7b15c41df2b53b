package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainerrors "basehub/contexts/ai-core/llm-orchestrator/domain/errors"
	"basehub/contexts/ai-core/llm-orchestrator/ports"
)

const pgUniqueViolation = "23505"

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

type sessionModel struct {
	SessionID   string    `gorm:"column:session_id;primaryKey"`
	BaseID      string    `gorm:"column:base_id;index"`
	Model       string    `gorm:"column:model"`
	TokenBudget int       `gorm:"column:token_budget"`
	TokensUsed  int       `gorm:"column:tokens_used"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (sessionModel) TableName() string { return "llm_sessions" }

type turnModel struct {
	TurnID    string    `gorm:"column:turn_id;primaryKey"`
	SessionID string    `gorm:"column:session_id;uniqueIndex:idx_llm_turns_session_seq"`
	Seq       int       `gorm:"column:seq;uniqueIndex:idx_llm_turns_session_seq"`
	Role      string    `gorm:"column:role"`
	Content   string    `gorm:"column:content"`
	TokensIn  int       `gorm:"column:tokens_in"`
	TokensOut int       `gorm:"column:tokens_out"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (turnModel) TableName() string { return "llm_turns" }

type idempotencyModel struct {
	Key         string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index"`
}

func (idempotencyModel) TableName() string { return "llm_idempotency" }

// Models lists the gorm models this adapter owns, for platform migration.
func Models() []any {
	return []any{&sessionModel{}, &turnModel{}, &idempotencyModel{}}
}

func (r *Repository) CreateSession(ctx context.Context, session ports.Session) error {
	row := sessionModel{
		SessionID:   session.ID,
		BaseID:      session.BaseID,
		Model:       session.Model,
		TokenBudget: session.TokenBudget,
		TokensUsed:  session.TokensUsed,
		CreatedAt:   session.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (ports.Session, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		First(&row).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ports.Session{}, domainerrors.ErrSessionNotFound
		}
		return ports.Session{}, err
	}
	return ports.Session{
		ID:          row.SessionID,
		BaseID:      row.BaseID,
		Model:       row.Model,
		TokenBudget: row.TokenBudget,
		TokensUsed:  row.TokensUsed,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (r *Repository) AppendTurn(ctx context.Context, turn ports.Turn) error {
	row := turnModel{
		TurnID:    turn.ID,
		SessionID: turn.SessionID,
		Seq:       turn.Seq,
		Role:      turn.Role,
		Content:   turn.Content,
		TokensIn:  turn.TokensIn,
		TokensOut: turn.TokensOut,
		CreatedAt: turn.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		// A duplicate (session, seq) means another chat request won the race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domainerrors.ErrTurnConflict
		}
		return err
	}
	return nil
}

func (r *Repository) ListTurns(ctx context.Context, sessionID string) ([]ports.Turn, error) {
	var rows []turnModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		Order("seq ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	turns := make([]ports.Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, ports.Turn{
			ID:        row.TurnID,
			SessionID: row.SessionID,
			Seq:       row.Seq,
			Role:      row.Role,
			Content:   row.Content,
			TokensIn:  row.TokensIn,
			TokensOut: row.TokensOut,
			CreatedAt: row.CreatedAt,
		})
	}
	return turns, nil
}

func (r *Repository) AddUsage(ctx context.Context, sessionID string, tokens int) error {
	result := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		UpdateColumn("tokens_used", gorm.Expr("tokens_used + ?", tokens))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrSessionNotFound
	}
	return nil
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
