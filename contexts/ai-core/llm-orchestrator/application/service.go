package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	domainerrors "basehub/contexts/ai-core/llm-orchestrator/domain/errors"
	"basehub/contexts/ai-core/llm-orchestrator/ports"
)

const (
	defaultTokenBudget = 100_000
	defaultIdemTTL     = 7 * 24 * time.Hour

	roleUser      = "user"
	roleAssistant = "assistant"
)

var baseIDPattern = regexp.MustCompile(`^app[A-Za-z0-9]{14}$`)

// groundingHint marks messages that want table context pulled in.
var groundingHint = regexp.MustCompile(`(?i)\b(table|tables|record|records|field|fields|schema|base)\b`)

type Service struct {
	Sessions    ports.SessionRepository
	Completer   ports.ChatCompleter
	Gateway     ports.Gateway
	Idempotency ports.IdempotencyStore
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger

	DefaultModel  string
	DefaultBaseID string
	EnvBaseID     string

	IdempotencyTTL time.Duration
}

type CreateSessionInput struct {
	BaseID      string
	Model       string
	TokenBudget int
}

type ChatResult struct {
	Turn       ports.Turn
	TokensUsed int
	Budget     int
}

// resolveBaseID applies the fallback chain at session creation: request
// value, then the orchestrator's configured default, then AIRTABLE_BASE.
func (s Service) resolveBaseID(explicit string) (string, error) {
	candidates := []struct {
		value  string
		source string
	}{
		{explicit, "request"},
		{s.DefaultBaseID, "service config"},
		{s.EnvBaseID, "AIRTABLE_BASE"},
	}
	for _, candidate := range candidates {
		value := strings.TrimSpace(candidate.value)
		if value == "" {
			continue
		}
		if !baseIDPattern.MatchString(value) {
			return "", fmt.Errorf("%w (from %s)", domainerrors.ErrInvalidBaseID, candidate.source)
		}
		return value, nil
	}
	return "", domainerrors.ErrBaseIDRequired
}

func (s Service) CreateSession(ctx context.Context, idempotencyKey string, input CreateSessionInput) (ports.Session, error) {
	var out ports.Session
	baseID, err := s.resolveBaseID(input.BaseID)
	if err != nil {
		return out, err
	}
	if err := s.requireIdempotency(idempotencyKey); err != nil {
		return out, err
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = s.DefaultModel
	}
	budget := input.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	payload, _ := json.Marshal(map[string]any{"base": baseID, "model": model, "budget": budget})
	requestHash := hashStrings("llm_create_session", string(payload))
	err = s.runIdempotent(
		ctx,
		idempotencyKey,
		requestHash,
		func(raw []byte) error { return json.Unmarshal(raw, &out) },
		func() ([]byte, error) {
			sessionID, err := s.IDGen.NewID(ctx)
			if err != nil {
				return nil, err
			}
			session := ports.Session{
				ID:          sessionID,
				BaseID:      baseID,
				Model:       model,
				TokenBudget: budget,
				CreatedAt:   s.now(),
			}
			if err := s.Sessions.CreateSession(ctx, session); err != nil {
				return nil, err
			}
			resolveLogger(s.Logger).Info("chat session created",
				"event", "llm_session_created",
				"module", "ai-core/llm-orchestrator",
				"layer", "application",
				"session_id", sessionID,
				"base_id", baseID,
				"model", model,
			)
			return json.Marshal(session)
		},
	)
	return out, err
}

func (s Service) Chat(ctx context.Context, idempotencyKey string, sessionID string, message string) (ChatResult, error) {
	var out ChatResult
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return out, domainerrors.ErrInvalidRequest
	}
	if err := s.requireIdempotency(idempotencyKey); err != nil {
		return out, err
	}

	requestHash := hashStrings("llm_chat", sessionID, message)
	err := s.runIdempotent(
		ctx,
		idempotencyKey,
		requestHash,
		func(raw []byte) error { return json.Unmarshal(raw, &out) },
		func() ([]byte, error) {
			result, err := s.chat(ctx, sessionID, message)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		},
	)
	return out, err
}

func (s Service) chat(ctx context.Context, sessionID string, message string) (ChatResult, error) {
	session, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return ChatResult{}, err
	}
	if session.TokensUsed >= session.TokenBudget {
		return ChatResult{}, domainerrors.ErrBudgetExhausted
	}

	history, err := s.Sessions.ListTurns(ctx, sessionID)
	if err != nil {
		return ChatResult{}, err
	}

	userTurnID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ChatResult{}, err
	}
	userTurn := ports.Turn{
		ID:        userTurnID,
		SessionID: sessionID,
		Seq:       len(history) + 1,
		Role:      roleUser,
		Content:   message,
		CreatedAt: s.now(),
	}
	if err := s.Sessions.AppendTurn(ctx, userTurn); err != nil {
		return ChatResult{}, err
	}

	system := s.systemPrompt(ctx, session, message)
	messages := make([]ports.ChatMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, ports.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, ports.ChatMessage{Role: roleUser, Content: message})

	completion, err := s.Completer.Complete(ctx, session.Model, system, messages)
	if err != nil {
		// The user turn stays recorded so the transcript shows the attempt.
		return ChatResult{}, fmt.Errorf("%w: %v", domainerrors.ErrCompleterUnavailable, err)
	}

	spent := completion.TokensIn + completion.TokensOut
	if session.TokensUsed+spent > session.TokenBudget {
		return ChatResult{}, domainerrors.ErrBudgetExhausted
	}

	assistantTurnID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ChatResult{}, err
	}
	assistantTurn := ports.Turn{
		ID:        assistantTurnID,
		SessionID: sessionID,
		Seq:       userTurn.Seq + 1,
		Role:      roleAssistant,
		Content:   completion.Content,
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
		CreatedAt: s.now(),
	}
	if err := s.Sessions.AppendTurn(ctx, assistantTurn); err != nil {
		return ChatResult{}, err
	}
	if err := s.Sessions.AddUsage(ctx, sessionID, spent); err != nil {
		return ChatResult{}, err
	}

	return ChatResult{
		Turn:       assistantTurn,
		TokensUsed: session.TokensUsed + spent,
		Budget:     session.TokenBudget,
	}, nil
}

func (s Service) GetSession(ctx context.Context, sessionID string) (ports.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return ports.Session{}, domainerrors.ErrInvalidRequest
	}
	return s.Sessions.GetSession(ctx, sessionID)
}

func (s Service) ListTurns(ctx context.Context, sessionID string) ([]ports.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domainerrors.ErrInvalidRequest
	}
	if _, err := s.Sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.Sessions.ListTurns(ctx, sessionID)
}

// systemPrompt grounds table-flavored questions with the base schema. A
// gateway failure degrades to the ungrounded prompt.
func (s Service) systemPrompt(ctx context.Context, session ports.Session, message string) string {
	prompt := "You are basehub, an assistant for an Airtable workspace. Base ID: " + session.BaseID + "."
	if s.Gateway == nil || !groundingHint.MatchString(message) {
		return prompt
	}

	tables, err := s.Gateway.ListTables(ctx, session.BaseID)
	if err != nil {
		resolveLogger(s.Logger).Warn("schema grounding failed",
			"event", "llm_grounding_failed",
			"module", "ai-core/llm-orchestrator",
			"layer", "application",
			"session_id", session.ID,
			"base_id", session.BaseID,
			"error", err.Error(),
		)
		return prompt
	}
	if len(tables) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(" The base has these tables:\n")
	for _, table := range tables {
		b.WriteString("- ")
		b.WriteString(table.Name)
		if len(table.Fields) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(table.Fields, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return defaultIdemTTL
	}
	return s.IdempotencyTTL
}

func (s Service) requireIdempotency(key string) error {
	if strings.TrimSpace(key) == "" {
		return domainerrors.ErrIdempotencyKeyRequired
	}
	return nil
}

func (s Service) runIdempotent(
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
