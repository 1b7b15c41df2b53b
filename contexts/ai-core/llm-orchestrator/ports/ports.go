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

type Session struct {
	ID          string
	BaseID      string
	Model       string
	TokenBudget int
	TokensUsed  int
	CreatedAt   time.Time
}

type Turn struct {
	ID        string
	SessionID string
	Seq       int
	Role      string
	Content   string
	TokensIn  int
	TokensOut int
	CreatedAt time.Time
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	AppendTurn(ctx context.Context, turn Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)
	AddUsage(ctx context.Context, sessionID string, tokens int) error
}

type ChatMessage struct {
	Role    string
	Content string
}

type Completion struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// ChatCompleter produces one assistant reply for a conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, model string, system string, messages []ChatMessage) (Completion, error)
}

type TableBrief struct {
	Name   string
	Fields []string
}

// Gateway exposes the slice of the data plane used for grounding prompts.
type Gateway interface {
	ListTables(ctx context.Context, baseID string) ([]TableBrief, error)
}
