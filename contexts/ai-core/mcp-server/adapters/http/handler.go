package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"basehub/contexts/ai-core/mcp-server/application"
	domainerrors "basehub/contexts/ai-core/mcp-server/domain/errors"
	httptransport "basehub/contexts/ai-core/mcp-server/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// Handle processes one JSON-RPC request. The second return is false for
// notifications, which get no response body.
func (h Handler) Handle(ctx context.Context, req httptransport.Request) (httptransport.Response, bool) {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, httptransport.CodeInvalidRequest, "jsonrpc must be \"2.0\""), !req.IsNotification()
	}

	resp, err := h.route(ctx, req)
	if err != nil {
		resp = rpcErrorFor(req.ID, err)
	}
	if req.IsNotification() {
		return httptransport.Response{}, false
	}
	return resp, true
}

func (h Handler) route(ctx context.Context, req httptransport.Request) (httptransport.Response, error) {
	switch req.Method {
	case "initialize":
		result := httptransport.InitializeResult{
			ProtocolVersion: application.ProtocolVersion,
			ServerInfo: httptransport.ServerInfo{
				Name:    h.Service.ServerName,
				Version: h.Service.ServerVersion,
			},
		}
		return resultResponse(req.ID, result), nil

	case "ping":
		return resultResponse(req.ID, struct{}{}), nil

	case "tools/list":
		tools := h.Service.ListTools(ctx)
		result := httptransport.ToolsListResult{
			Tools: make([]httptransport.ToolDescriptor, 0, len(tools)),
		}
		for _, tool := range tools {
			result.Tools = append(result.Tools, httptransport.ToolDescriptor{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: json.RawMessage(tool.InputSchema),
			})
		}
		return resultResponse(req.ID, result), nil

	case "tools/call":
		var params httptransport.ToolCallParams
		if len(req.Params) == 0 {
			return httptransport.Response{}, domainerrors.ErrInvalidParams
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return httptransport.Response{}, domainerrors.ErrInvalidParams
		}
		if params.Name == "" {
			return httptransport.Response{}, domainerrors.ErrInvalidParams
		}

		outcome, err := h.Service.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return httptransport.Response{}, err
		}
		result := httptransport.ToolCallResult{
			Content: []httptransport.ContentItem{{Type: "text", Text: outcome.Text}},
			IsError: outcome.IsError,
		}
		return resultResponse(req.ID, result), nil

	default:
		return httptransport.Response{}, domainerrors.ErrUnknownMethod
	}
}

func resultResponse(id json.RawMessage, result any) httptransport.Response {
	return httptransport.Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Result:  result,
	}
}

func errorResponse(id json.RawMessage, code int, message string) httptransport.Response {
	return httptransport.Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error: &httptransport.RPCError{
			Code:    code,
			Message: message,
		},
	}
}

func rpcErrorFor(id json.RawMessage, err error) httptransport.Response {
	switch {
	case errors.Is(err, domainerrors.ErrUnknownMethod):
		return errorResponse(id, httptransport.CodeMethodNotFound, err.Error())
	case errors.Is(err, domainerrors.ErrInvalidParams),
		errors.Is(err, domainerrors.ErrUnknownTool):
		return errorResponse(id, httptransport.CodeInvalidParams, err.Error())
	default:
		return errorResponse(id, httptransport.CodeInternalError, "internal error")
	}
}

// normalizeID keeps whatever JSON type the caller sent; a missing id is
// rendered as null (only reachable on invalid-request responses).
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
