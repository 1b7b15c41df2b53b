package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	llmerrors "basehub/contexts/ai-core/llm-orchestrator/domain/errors"
	llmhttp "basehub/contexts/ai-core/llm-orchestrator/transport/http"
)

func (s *Server) registerLLMRoutes() {
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{session_id}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{session_id}/turns", s.handleListTurns)
	s.mux.HandleFunc("POST /api/sessions/{session_id}/chat", s.handleChat)
}

func writeLLMError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, llmhttp.ErrorResponse{Code: code, Message: message})
}

func writeLLMDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, llmerrors.ErrBaseIDRequired),
		errors.Is(err, llmerrors.ErrInvalidBaseID),
		errors.Is(err, llmerrors.ErrInvalidRequest):
		writeLLMError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, llmerrors.ErrIdempotencyKeyRequired):
		writeLLMError(w, http.StatusBadRequest, "missing_idempotency_key", err.Error())
	case errors.Is(err, llmerrors.ErrIdempotencyConflict):
		writeLLMError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, llmerrors.ErrTurnConflict):
		writeLLMError(w, http.StatusConflict, "turn_conflict", err.Error())
	case errors.Is(err, llmerrors.ErrSessionNotFound):
		writeLLMError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, llmerrors.ErrBudgetExhausted):
		writeLLMError(w, http.StatusPaymentRequired, "budget_exhausted", err.Error())
	case errors.Is(err, llmerrors.ErrCompleterUnavailable):
		writeLLMError(w, http.StatusBadGateway, "completer_unavailable", err.Error())
	default:
		writeLLMError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req llmhttp.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLLMError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.llm.Handler.CreateSessionHandler(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeLLMDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.llm.Handler.GetSessionHandler(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeLLMDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	resp, err := s.llm.Handler.ListTurnsHandler(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeLLMDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req llmhttp.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLLMError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.llm.Handler.ChatHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		r.PathValue("session_id"),
		req,
	)
	if err != nil {
		writeLLMDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
