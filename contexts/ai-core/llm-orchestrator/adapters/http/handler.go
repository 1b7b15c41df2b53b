package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"basehub/contexts/ai-core/llm-orchestrator/application"
	domainerrors "basehub/contexts/ai-core/llm-orchestrator/domain/errors"
	"basehub/contexts/ai-core/llm-orchestrator/ports"
	httptransport "basehub/contexts/ai-core/llm-orchestrator/transport/http"
)

// validate is package-level; constructing a validator per request is costly.
var validate = validator.New()

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateSessionHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.CreateSessionRequest,
) (httptransport.SessionResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.SessionResponse{}, domainerrors.ErrInvalidRequest
	}
	session, err := h.Service.CreateSession(ctx, idempotencyKey, application.CreateSessionInput{
		BaseID:      req.BaseID,
		Model:       req.Model,
		TokenBudget: req.TokenBudget,
	})
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return httptransport.SessionResponse{Status: "success", Data: sessionDTO(session)}, nil
}

func (h Handler) GetSessionHandler(ctx context.Context, sessionID string) (httptransport.SessionResponse, error) {
	session, err := h.Service.GetSession(ctx, sessionID)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return httptransport.SessionResponse{Status: "success", Data: sessionDTO(session)}, nil
}

func (h Handler) ChatHandler(
	ctx context.Context,
	idempotencyKey string,
	sessionID string,
	req httptransport.ChatRequest,
) (httptransport.ChatResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.ChatResponse{}, domainerrors.ErrInvalidRequest
	}
	result, err := h.Service.Chat(ctx, idempotencyKey, sessionID, req.Message)
	if err != nil {
		return httptransport.ChatResponse{}, err
	}
	resp := httptransport.ChatResponse{Status: "success"}
	resp.Data.Turn = turnDTO(result.Turn)
	resp.Data.TokensUsed = result.TokensUsed
	resp.Data.Budget = result.Budget
	return resp, nil
}

func (h Handler) ListTurnsHandler(ctx context.Context, sessionID string) (httptransport.TurnsResponse, error) {
	turns, err := h.Service.ListTurns(ctx, sessionID)
	if err != nil {
		return httptransport.TurnsResponse{}, err
	}
	resp := httptransport.TurnsResponse{Status: "success"}
	resp.Data = make([]httptransport.TurnDTO, 0, len(turns))
	for _, turn := range turns {
		resp.Data = append(resp.Data, turnDTO(turn))
	}
	return resp, nil
}

func sessionDTO(session ports.Session) httptransport.SessionDTO {
	return httptransport.SessionDTO{
		ID:          session.ID,
		BaseID:      session.BaseID,
		Model:       session.Model,
		TokenBudget: session.TokenBudget,
		TokensUsed:  session.TokensUsed,
		CreatedAt:   session.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func turnDTO(turn ports.Turn) httptransport.TurnDTO {
	return httptransport.TurnDTO{
		ID:        turn.ID,
		SessionID: turn.SessionID,
		Seq:       turn.Seq,
		Role:      turn.Role,
		Content:   turn.Content,
		TokensIn:  turn.TokensIn,
		TokensOut: turn.TokensOut,
		CreatedAt: turn.CreatedAt.UTC().Format(time.RFC3339),
	}
}
