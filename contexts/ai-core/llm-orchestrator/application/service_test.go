package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domainerrors "basehub/contexts/ai-core/llm-orchestrator/domain/errors"
	"basehub/contexts/ai-core/llm-orchestrator/ports"
)

const testBase = "appXXXXXXXXXXXXXX"

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID(_ context.Context) (string, error) {
	g.n++
	return fmt.Sprintf("id-%03d", g.n), nil
}

type fakeSessions struct {
	sessions map[string]ports.Session
	turns    map[string][]ports.Turn
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: make(map[string]ports.Session),
		turns:    make(map[string][]ports.Turn),
	}
}

func (f *fakeSessions) CreateSession(_ context.Context, session ports.Session) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessions) GetSession(_ context.Context, sessionID string) (ports.Session, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return ports.Session{}, domainerrors.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessions) AppendTurn(_ context.Context, turn ports.Turn) error {
	f.turns[turn.SessionID] = append(f.turns[turn.SessionID], turn)
	return nil
}

func (f *fakeSessions) ListTurns(_ context.Context, sessionID string) ([]ports.Turn, error) {
	return append([]ports.Turn(nil), f.turns[sessionID]...), nil
}

func (f *fakeSessions) AddUsage(_ context.Context, sessionID string, tokens int) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domainerrors.ErrSessionNotFound
	}
	session.TokensUsed += tokens
	f.sessions[sessionID] = session
	return nil
}

type fakeIdempotency struct {
	records map[string]ports.IdempotencyRecord
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{records: make(map[string]ports.IdempotencyRecord)}
}

func (f *fakeIdempotency) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	record, ok := f.records[key]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (f *fakeIdempotency) Put(_ context.Context, record ports.IdempotencyRecord) error {
	f.records[record.Key] = record
	return nil
}

type scriptedCompleter struct {
	calls      int
	lastSystem string
	lastModel  string
	reply      ports.Completion
	err        error
}

func (c *scriptedCompleter) Complete(_ context.Context, model string, system string, _ []ports.ChatMessage) (ports.Completion, error) {
	c.calls++
	c.lastModel = model
	c.lastSystem = system
	if c.err != nil {
		return ports.Completion{}, c.err
	}
	return c.reply, nil
}

type tablesFunc func(ctx context.Context, baseID string) ([]ports.TableBrief, error)

func (f tablesFunc) ListTables(ctx context.Context, baseID string) ([]ports.TableBrief, error) {
	return f(ctx, baseID)
}

func newTestService(sessions *fakeSessions, completer ports.ChatCompleter, gateway ports.Gateway) Service {
	return Service{
		Sessions:     sessions,
		Completer:    completer,
		Gateway:      gateway,
		Idempotency:  newFakeIdempotency(),
		Clock:        fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		IDGen:        &seqIDGen{},
		DefaultModel: "gemini-2.0-flash",
	}
}

func TestCreateSessionFallsBackToEnvBase(t *testing.T) {
	sessions := newFakeSessions()
	service := newTestService(sessions, &scriptedCompleter{}, nil)
	service.EnvBaseID = testBase

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.BaseID != testBase {
		t.Fatalf("base id = %q, want env fallback %q", session.BaseID, testBase)
	}
	if session.Model != "gemini-2.0-flash" {
		t.Fatalf("model = %q, want default", session.Model)
	}
	if session.TokenBudget != defaultTokenBudget {
		t.Fatalf("budget = %d, want default %d", session.TokenBudget, defaultTokenBudget)
	}
}

func TestCreateSessionExplicitBeatsEnv(t *testing.T) {
	sessions := newFakeSessions()
	service := newTestService(sessions, &scriptedCompleter{}, nil)
	service.EnvBaseID = "appENVENVENVENV00"

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.BaseID != testBase {
		t.Fatalf("base id = %q, want explicit %q", session.BaseID, testBase)
	}
}

func TestCreateSessionWithoutAnyBaseNamesEnvVar(t *testing.T) {
	service := newTestService(newFakeSessions(), &scriptedCompleter{}, nil)

	_, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{})
	if !errors.Is(err, domainerrors.ErrBaseIDRequired) {
		t.Fatalf("err = %v, want ErrBaseIDRequired", err)
	}
	if !strings.Contains(err.Error(), "AIRTABLE_BASE") {
		t.Fatalf("error %q does not name AIRTABLE_BASE", err.Error())
	}
}

func TestCreateSessionRejectsMalformedEnvBase(t *testing.T) {
	service := newTestService(newFakeSessions(), &scriptedCompleter{}, nil)
	service.EnvBaseID = "not-a-base"

	_, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{})
	if !errors.Is(err, domainerrors.ErrInvalidBaseID) {
		t.Fatalf("err = %v, want ErrInvalidBaseID", err)
	}
	if !strings.Contains(err.Error(), "AIRTABLE_BASE") {
		t.Fatalf("error %q does not name the offending source", err.Error())
	}
}

func TestCreateSessionReplaysOnSameKey(t *testing.T) {
	sessions := newFakeSessions()
	service := newTestService(sessions, &scriptedCompleter{}, nil)

	first, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("first CreateSession: %v", err)
	}
	second, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("second CreateSession: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new session: %q vs %q", first.ID, second.ID)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("sessions stored = %d, want 1", len(sessions.sessions))
	}
}

func TestChatAppendsBothTurnsAndCharges(t *testing.T) {
	sessions := newFakeSessions()
	completer := &scriptedCompleter{reply: ports.Completion{Content: "hi there", TokensIn: 10, TokensOut: 5}}
	service := newTestService(sessions, completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	result, err := service.Chat(context.Background(), "key-2", session.ID, "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Turn.Role != "assistant" || result.Turn.Content != "hi there" {
		t.Fatalf("assistant turn = %+v", result.Turn)
	}
	if result.TokensUsed != 15 {
		t.Fatalf("tokens used = %d, want 15", result.TokensUsed)
	}

	turns, err := service.ListTurns(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("turns = %+v", turns)
	}
	if turns[0].Seq != 1 || turns[1].Seq != 2 {
		t.Fatalf("seq = %d, %d, want 1, 2", turns[0].Seq, turns[1].Seq)
	}

	stored, _ := sessions.GetSession(context.Background(), session.ID)
	if stored.TokensUsed != 15 {
		t.Fatalf("stored usage = %d, want 15", stored.TokensUsed)
	}
}

func TestChatUsesSessionModel(t *testing.T) {
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok"}}
	service := newTestService(newFakeSessions(), completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase, Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := service.Chat(context.Background(), "key-2", session.ID, "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if completer.lastModel != "gemini-2.5-pro" {
		t.Fatalf("model = %q, want session model", completer.lastModel)
	}
}

func TestChatGroundsSchemaQuestions(t *testing.T) {
	var asked string
	gateway := tablesFunc(func(_ context.Context, baseID string) ([]ports.TableBrief, error) {
		asked = baseID
		return []ports.TableBrief{{Name: "Projects", Fields: []string{"Name", "Status"}}}, nil
	})
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok"}}
	service := newTestService(newFakeSessions(), completer, gateway)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := service.Chat(context.Background(), "key-2", session.ID, "what tables does this base have?"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if asked != testBase {
		t.Fatalf("gateway asked for base %q, want %q", asked, testBase)
	}
	if !strings.Contains(completer.lastSystem, "Projects") || !strings.Contains(completer.lastSystem, "Status") {
		t.Fatalf("system prompt not grounded: %q", completer.lastSystem)
	}
}

func TestChatSkipsGroundingForPlainQuestions(t *testing.T) {
	called := false
	gateway := tablesFunc(func(_ context.Context, _ string) ([]ports.TableBrief, error) {
		called = true
		return nil, nil
	})
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok"}}
	service := newTestService(newFakeSessions(), completer, gateway)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := service.Chat(context.Background(), "key-2", session.ID, "what is the weather today?"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if called {
		t.Fatal("gateway consulted for a question with no data-plane hint")
	}
}

func TestChatDegradesWhenGroundingFails(t *testing.T) {
	gateway := tablesFunc(func(_ context.Context, _ string) ([]ports.TableBrief, error) {
		return nil, errors.New("gateway down")
	})
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok"}}
	service := newTestService(newFakeSessions(), completer, gateway)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := service.Chat(context.Background(), "key-2", session.ID, "list my tables"); err != nil {
		t.Fatalf("Chat should degrade, got: %v", err)
	}
	if !strings.Contains(completer.lastSystem, testBase) {
		t.Fatalf("ungrounded prompt missing base id: %q", completer.lastSystem)
	}
}

func TestChatKeepsUserTurnOnCompleterFailure(t *testing.T) {
	sessions := newFakeSessions()
	completer := &scriptedCompleter{err: errors.New("quota exceeded")}
	service := newTestService(sessions, completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	_, err = service.Chat(context.Background(), "key-2", session.ID, "hello")
	if !errors.Is(err, domainerrors.ErrCompleterUnavailable) {
		t.Fatalf("err = %v, want ErrCompleterUnavailable", err)
	}

	turns := sessions.turns[session.ID]
	if len(turns) != 1 || turns[0].Role != "user" {
		t.Fatalf("turns after failure = %+v, want the user turn only", turns)
	}
}

func TestChatRejectsExhaustedBudget(t *testing.T) {
	sessions := newFakeSessions()
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok", TokensIn: 1, TokensOut: 1}}
	service := newTestService(sessions, completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase, TokenBudget: 10})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := sessions.AddUsage(context.Background(), session.ID, 10); err != nil {
		t.Fatalf("AddUsage: %v", err)
	}

	_, err = service.Chat(context.Background(), "key-2", session.ID, "hello")
	if !errors.Is(err, domainerrors.ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
	if completer.calls != 0 {
		t.Fatalf("completer called %d times for an exhausted session", completer.calls)
	}
}

func TestChatRejectsCompletionThatOverrunsBudget(t *testing.T) {
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok", TokensIn: 8, TokensOut: 8}}
	service := newTestService(newFakeSessions(), completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase, TokenBudget: 10})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	_, err = service.Chat(context.Background(), "key-2", session.ID, "hello")
	if !errors.Is(err, domainerrors.ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
}

func TestChatReplaysOnSameKey(t *testing.T) {
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok", TokensIn: 2, TokensOut: 2}}
	service := newTestService(newFakeSessions(), completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	first, err := service.Chat(context.Background(), "key-2", session.ID, "hello")
	if err != nil {
		t.Fatalf("first Chat: %v", err)
	}
	second, err := service.Chat(context.Background(), "key-2", session.ID, "hello")
	if err != nil {
		t.Fatalf("second Chat: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("completer called %d times, want 1", completer.calls)
	}
	if first.Turn.ID != second.Turn.ID {
		t.Fatalf("replay produced a different turn: %q vs %q", first.Turn.ID, second.Turn.ID)
	}
}

func TestChatConflictsOnKeyReuse(t *testing.T) {
	completer := &scriptedCompleter{reply: ports.Completion{Content: "ok"}}
	service := newTestService(newFakeSessions(), completer, nil)

	session, err := service.CreateSession(context.Background(), "key-1", CreateSessionInput{BaseID: testBase})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := service.Chat(context.Background(), "key-2", session.ID, "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	_, err = service.Chat(context.Background(), "key-2", session.ID, "different message")
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("err = %v, want ErrIdempotencyConflict", err)
	}
}

func TestChatUnknownSession(t *testing.T) {
	service := newTestService(newFakeSessions(), &scriptedCompleter{}, nil)

	_, err := service.Chat(context.Background(), "key-1", "missing", "hello")
	if !errors.Is(err, domainerrors.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}
