package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"basehub/contexts/platform-ops/deployment-service/application"
	domainerrors "basehub/contexts/platform-ops/deployment-service/domain/errors"
	"basehub/contexts/platform-ops/deployment-service/ports"
	httptransport "basehub/contexts/platform-ops/deployment-service/transport/http"
)

var validate = validator.New()

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) GetTableHandler(ctx context.Context) (httptransport.TableResponse, error) {
	table, err := h.Service.CurrentTable(ctx)
	if err != nil {
		return httptransport.TableResponse{}, err
	}
	return tableResponse(table), nil
}

func (h Handler) RenderTableHandler(ctx context.Context) (httptransport.RenderResponse, error) {
	table, err := h.Service.CurrentTable(ctx)
	if err != nil {
		return httptransport.RenderResponse{}, err
	}
	resp := httptransport.RenderResponse{Status: "success"}
	resp.Data.Markdown = application.RenderTable(table)
	return resp, nil
}

func (h Handler) ApplyComposeHandler(ctx context.Context, req httptransport.ApplyComposeRequest) (httptransport.ApplyComposeResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.ApplyComposeResponse{}, domainerrors.ErrInvalidRequest
	}
	out, warnings, err := h.Service.ApplyCompose(ctx, []byte(req.Compose))
	if err != nil {
		return httptransport.ApplyComposeResponse{}, err
	}
	resp := httptransport.ApplyComposeResponse{Status: "success"}
	resp.Data.Compose = string(out)
	resp.Data.Warnings = warnings
	return resp, nil
}

func (h Handler) DiffComposeHandler(ctx context.Context, req httptransport.ApplyComposeRequest) (httptransport.DiffResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.DiffResponse{}, domainerrors.ErrInvalidRequest
	}
	diffs, err := h.Service.DiffCompose(ctx, []byte(req.Compose))
	if err != nil {
		return httptransport.DiffResponse{}, err
	}
	resp := httptransport.DiffResponse{Status: "success"}
	resp.Data = make([]httptransport.DiffDTO, 0, len(diffs))
	for _, diff := range diffs {
		resp.Data = append(resp.Data, httptransport.DiffDTO{
			Service:  diff.Service,
			WantPort: diff.WantPort,
			GotPort:  diff.GotPort,
		})
	}
	return resp, nil
}

func (h Handler) RunAuditHandler(ctx context.Context) (httptransport.AuditResponse, error) {
	findings, err := h.Service.RunAudit(ctx, nil)
	if err != nil {
		return httptransport.AuditResponse{}, err
	}
	resp := httptransport.AuditResponse{Status: "success"}
	resp.Data = make([]httptransport.AuditFindingDTO, 0, len(findings))
	for _, finding := range findings {
		resp.Data = append(resp.Data, httptransport.AuditFindingDTO{
			Service: finding.Service,
			Check:   finding.Check,
			Pass:    finding.Pass,
			Detail:  finding.Detail,
		})
	}
	return resp, nil
}

func tableResponse(table ports.RemapTable) httptransport.TableResponse {
	resp := httptransport.TableResponse{Status: "success"}
	resp.Data.Source = table.Source
	if !table.LoadedAt.IsZero() {
		resp.Data.LoadedAt = table.LoadedAt.UTC().Format(time.RFC3339)
	}
	resp.Data.Mappings = make([]httptransport.MappingDTO, 0, len(table.Mappings))
	for _, mapping := range table.Mappings {
		resp.Data.Mappings = append(resp.Data.Mappings, httptransport.MappingDTO{
			Service:      mapping.Service,
			OriginalPort: mapping.OriginalPort,
			NewPort:      mapping.NewPort,
			Protocol:     mapping.Protocol,
		})
	}
	return resp
}
