package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	deployerrors "basehub/contexts/platform-ops/deployment-service/domain/errors"
	deployhttp "basehub/contexts/platform-ops/deployment-service/transport/http"
)

func (s *Server) registerDeploymentRoutes() {
	s.mux.HandleFunc("GET /api/deploy/table", s.handleDeployGetTable)
	s.mux.HandleFunc("GET /api/deploy/table/markdown", s.handleDeployRenderTable)
	s.mux.HandleFunc("POST /api/deploy/compose/apply", s.handleDeployApplyCompose)
	s.mux.HandleFunc("POST /api/deploy/compose/diff", s.handleDeployDiffCompose)
	s.mux.HandleFunc("POST /api/deploy/audit", s.handleDeployRunAudit)
}

func writeDeployError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, deployhttp.ErrorResponse{Code: code, Message: message})
}

func writeDeployDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, deployerrors.ErrInvalidRequest),
		errors.Is(err, deployerrors.ErrInvalidCompose),
		errors.Is(err, deployerrors.ErrInvalidTable):
		writeDeployError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, deployerrors.ErrTableNotLoaded):
		writeDeployError(w, http.StatusConflict, "table_not_loaded", err.Error())
	default:
		writeDeployError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleDeployGetTable(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deployment.Handler.GetTableHandler(r.Context())
	if err != nil {
		writeDeployDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeployRenderTable(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deployment.Handler.RenderTableHandler(r.Context())
	if err != nil {
		writeDeployDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeployApplyCompose(w http.ResponseWriter, r *http.Request) {
	var req deployhttp.ApplyComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDeployError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.deployment.Handler.ApplyComposeHandler(r.Context(), req)
	if err != nil {
		writeDeployDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeployDiffCompose(w http.ResponseWriter, r *http.Request) {
	var req deployhttp.ApplyComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDeployError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.deployment.Handler.DiffComposeHandler(r.Context(), req)
	if err != nil {
		writeDeployDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeployRunAudit(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deployment.Handler.RunAuditHandler(r.Context())
	if err != nil {
		writeDeployDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
