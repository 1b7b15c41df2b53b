package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "basehub/contexts/ai-core/llm-orchestrator/domain/errors"
	"basehub/contexts/ai-core/llm-orchestrator/ports"
)

// Store is the in-memory session repository plus idempotency store, clock
// and id generator. Used by NewInMemoryModule and tests.
type Store struct {
	mu sync.RWMutex

	sessions    map[string]ports.Session
	turns       map[string][]ports.Turn
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]ports.Session),
		turns:       make(map[string][]ports.Turn),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) CreateSession(_ context.Context, session ports.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (ports.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ports.Session{}, domainerrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) AppendTurn(_ context.Context, turn ports.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[turn.SessionID]; !ok {
		return domainerrors.ErrSessionNotFound
	}
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *Store) ListTurns(_ context.Context, sessionID string) ([]ports.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := append([]ports.Turn(nil), s.turns[sessionID]...)
	sort.Slice(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq })
	return turns, nil
}

func (s *Store) AddUsage(_ context.Context, sessionID string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domainerrors.ErrSessionNotFound
	}
	session.TokensUsed += tokens
	s.sessions[sessionID] = session
	return nil
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

// EchoCompleter is a deterministic ports.ChatCompleter for wiring without an
// API key. It restates the question and the grounding it was given.
type EchoCompleter struct{}

func (EchoCompleter) Complete(_ context.Context, _ string, system string, messages []ports.ChatMessage) (ports.Completion, error) {
	if len(messages) == 0 {
		return ports.Completion{}, fmt.Errorf("no messages to complete")
	}
	last := messages[len(messages)-1]
	content := "You asked: " + last.Content
	if idx := strings.Index(system, "The base has"); idx >= 0 {
		content += "\n\n" + system[idx:]
	}
	return ports.Completion{
		Content:   content,
		TokensIn:  approximateTokens(system) + approximateTokens(last.Content),
		TokensOut: approximateTokens(content),
	}, nil
}

func approximateTokens(text string) int {
	return len(strings.Fields(text))
}
