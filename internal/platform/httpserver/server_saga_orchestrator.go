package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	sagaerrors "basehub/contexts/platform-ops/saga-orchestrator/domain/errors"
	sagahttp "basehub/contexts/platform-ops/saga-orchestrator/transport/http"
)

func (s *Server) registerSagaRoutes() {
	s.mux.HandleFunc("POST /api/sagas", s.handleStartSaga)
	s.mux.HandleFunc("GET /api/sagas", s.handleListSagas)
	s.mux.HandleFunc("GET /api/sagas/{saga_id}", s.handleGetSaga)
}

func writeSagaError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, sagahttp.ErrorResponse{Code: code, Message: message})
}

func writeSagaDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sagaerrors.ErrInvalidRequest):
		writeSagaError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, sagaerrors.ErrIdempotencyKeyRequired):
		writeSagaError(w, http.StatusBadRequest, "missing_idempotency_key", err.Error())
	case errors.Is(err, sagaerrors.ErrIdempotencyConflict):
		writeSagaError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, sagaerrors.ErrUnknownDefinition):
		writeSagaError(w, http.StatusNotFound, "unknown_definition", err.Error())
	case errors.Is(err, sagaerrors.ErrSagaNotFound):
		writeSagaError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeSagaError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleStartSaga(w http.ResponseWriter, r *http.Request) {
	var req sagahttp.StartSagaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSagaError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.sagas.Handler.StartSagaHandler(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeSagaDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetSaga(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sagas.Handler.GetSagaHandler(r.Context(), r.PathValue("saga_id"))
	if err != nil {
		writeSagaDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSagas(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeSagaError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.sagas.Handler.ListSagasHandler(r.Context(), query.Get("name"), query.Get("state"), limit)
	if err != nil {
		writeSagaDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
