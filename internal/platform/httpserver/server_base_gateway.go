package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	gatewayerrors "basehub/contexts/data-plane/base-gateway/domain/errors"
	gatewayhttp "basehub/contexts/data-plane/base-gateway/transport/http"
)

func (s *Server) registerBaseGatewayRoutes() {
	s.mux.HandleFunc("GET /api/tables", s.handleListTables)
	s.mux.HandleFunc("GET /api/tables/{table}/records", s.handleListRecords)
	s.mux.HandleFunc("GET /api/tables/{table}/records/{record_id}", s.handleGetRecord)
	s.mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	s.mux.HandleFunc("PATCH /api/tables/{table}/records/{record_id}", s.handleUpdateRecord)
	s.mux.HandleFunc("DELETE /api/tables/{table}/records/{record_id}", s.handleDeleteRecord)
	s.mux.HandleFunc("POST /api/records/search", s.handleSearchRecords)
	s.mux.HandleFunc("GET /api/audit/writes", s.handleListWriteAudit)
}

func writeGatewayError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, gatewayhttp.ErrorResponse{Code: code, Message: message})
}

func writeGatewayDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gatewayerrors.ErrBaseIDRequired),
		errors.Is(err, gatewayerrors.ErrInvalidBaseID),
		errors.Is(err, gatewayerrors.ErrInvalidRequest),
		errors.Is(err, gatewayerrors.ErrEmptyUpdate):
		writeGatewayError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, gatewayerrors.ErrIdempotencyKeyRequired):
		writeGatewayError(w, http.StatusBadRequest, "missing_idempotency_key", err.Error())
	case errors.Is(err, gatewayerrors.ErrIdempotencyConflict):
		writeGatewayError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, gatewayerrors.ErrTableNotFound),
		errors.Is(err, gatewayerrors.ErrRecordNotFound):
		writeGatewayError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, gatewayerrors.ErrRateLimited):
		writeGatewayError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, gatewayerrors.ErrUpstreamUnavailable):
		writeGatewayError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		writeGatewayError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gateway.Handler.ListTablesHandler(r.Context(), r.URL.Query().Get("base_id"))
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := gatewayhttp.ListRecordsRequest{
		BaseID:        query.Get("base_id"),
		Table:         r.PathValue("table"),
		View:          query.Get("view"),
		Offset:        query.Get("offset"),
		FilterFormula: query.Get("filter_formula"),
	}
	if raw := query.Get("page_size"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil {
			writeGatewayError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be an integer")
			return
		}
		req.PageSize = pageSize
	}
	if raw := query.Get("max_records"); raw != "" {
		maxRecords, err := strconv.Atoi(raw)
		if err != nil {
			writeGatewayError(w, http.StatusBadRequest, "invalid_max_records", "max_records must be an integer")
			return
		}
		req.MaxRecords = maxRecords
	}

	resp, err := s.gateway.Handler.ListRecordsHandler(r.Context(), req)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gateway.Handler.GetRecordHandler(
		r.Context(),
		r.URL.Query().Get("base_id"),
		r.PathValue("table"),
		r.PathValue("record_id"),
	)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req gatewayhttp.CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.gateway.Handler.CreateRecordHandler(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req gatewayhttp.UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.gateway.Handler.UpdateRecordHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		r.PathValue("table"),
		r.PathValue("record_id"),
		req,
	)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gateway.Handler.DeleteRecordHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		r.URL.Query().Get("base_id"),
		r.PathValue("table"),
		r.PathValue("record_id"),
	)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchRecords(w http.ResponseWriter, r *http.Request) {
	var req gatewayhttp.SearchRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.gateway.Handler.SearchRecordsHandler(r.Context(), req)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWriteAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeGatewayError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.gateway.Handler.ListWriteAuditHandler(r.Context(), r.URL.Query().Get("base_id"), limit)
	if err != nil {
		writeGatewayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
