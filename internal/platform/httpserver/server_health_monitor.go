package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	monitorerrors "basehub/contexts/platform-ops/health-monitor/domain/errors"
	monitorhttp "basehub/contexts/platform-ops/health-monitor/transport/http"
)

func (s *Server) registerMonitorRoutes() {
	s.mux.HandleFunc("GET /api/monitor/report", s.handleMonitorReport)
	s.mux.HandleFunc("GET /api/monitor/services/{service}/history", s.handleMonitorHistory)
	s.mux.HandleFunc("POST /api/monitor/probe", s.handleMonitorProbe)
}

func writeMonitorError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, monitorhttp.ErrorResponse{Code: code, Message: message})
}

func writeMonitorDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitorerrors.ErrInvalidRequest):
		writeMonitorError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, monitorerrors.ErrUnknownService):
		writeMonitorError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, monitorerrors.ErrNoTargets):
		writeMonitorError(w, http.StatusConflict, "no_targets", err.Error())
	default:
		writeMonitorError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleMonitorReport(w http.ResponseWriter, r *http.Request) {
	resp, err := s.monitor.Handler.GetReportHandler(r.Context())
	if err != nil {
		writeMonitorDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMonitorHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeMonitorError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.monitor.Handler.GetServiceHistoryHandler(r.Context(), r.PathValue("service"), limit)
	if err != nil {
		writeMonitorDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMonitorProbe(w http.ResponseWriter, r *http.Request) {
	resp, err := s.monitor.Handler.ProbeAllHandler(r.Context())
	if err != nil {
		writeMonitorDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
