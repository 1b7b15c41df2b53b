package httpserver

import (
	"encoding/json"
	"net/http"

	mcphttp "basehub/contexts/ai-core/mcp-server/transport/http"
)

func (s *Server) registerMCPRoutes() {
	s.mux.HandleFunc("POST /rpc", s.handleMCPRPC)
}

// handleMCPRPC speaks JSON-RPC 2.0. Malformed JSON is the one error shape
// the adapter cannot produce itself, so it is mapped here.
func (s *Server) handleMCPRPC(w http.ResponseWriter, r *http.Request) {
	var req mcphttp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, mcphttp.Response{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error: &mcphttp.RPCError{
				Code:    mcphttp.CodeParseError,
				Message: "request body is not valid JSON",
			},
		})
		return
	}

	resp, respond := s.mcp.Handler.Handle(r.Context(), req)
	if !respond {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
