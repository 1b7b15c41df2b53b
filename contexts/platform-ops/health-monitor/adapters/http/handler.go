package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"basehub/contexts/platform-ops/health-monitor/application"
	"basehub/contexts/platform-ops/health-monitor/ports"
	httptransport "basehub/contexts/platform-ops/health-monitor/transport/http"
)

type Handler struct {
	Service *application.Service
	Logger  *slog.Logger
}

func (h Handler) GetReportHandler(ctx context.Context) (httptransport.ReportResponse, error) {
	report, err := h.Service.GetReport(ctx)
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	resp := httptransport.ReportResponse{Status: "success"}
	resp.Data.State = string(report.State)
	resp.Data.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	resp.Data.Services = make([]httptransport.ServiceStatusDTO, 0, len(report.Services))
	for _, status := range report.Services {
		dto := httptransport.ServiceStatusDTO{
			Service:             status.Service,
			State:               string(status.State),
			ConsecutiveFailures: status.ConsecutiveFailures,
		}
		if !status.LastHealthyAt.IsZero() {
			dto.LastHealthyAt = status.LastHealthyAt.UTC().Format(time.RFC3339)
		}
		resp.Data.Services = append(resp.Data.Services, dto)
	}
	return resp, nil
}

func (h Handler) GetServiceHistoryHandler(ctx context.Context, service string, limit int) (httptransport.HistoryResponse, error) {
	history, err := h.Service.GetServiceHistory(ctx, service, limit)
	if err != nil {
		return httptransport.HistoryResponse{}, err
	}
	resp := httptransport.HistoryResponse{Status: "success"}
	resp.Data = probeResultDTOs(history)
	return resp, nil
}

func (h Handler) ProbeAllHandler(ctx context.Context) (httptransport.ProbeSweepResponse, error) {
	results, err := h.Service.ProbeAll(ctx)
	if err != nil {
		return httptransport.ProbeSweepResponse{}, err
	}
	resp := httptransport.ProbeSweepResponse{Status: "success"}
	resp.Data = probeResultDTOs(results)
	return resp, nil
}

func probeResultDTOs(results []ports.ProbeResult) []httptransport.ProbeResultDTO {
	dtos := make([]httptransport.ProbeResultDTO, 0, len(results))
	for _, result := range results {
		dtos = append(dtos, httptransport.ProbeResultDTO{
			Service:    result.Service,
			URL:        result.URL,
			Healthy:    result.Healthy,
			StatusCode: result.StatusCode,
			LatencyMs:  result.LatencyMs,
			CheckedAt:  result.CheckedAt.UTC().Format(time.RFC3339),
			Detail:     result.Detail,
		})
	}
	return dtos
}
