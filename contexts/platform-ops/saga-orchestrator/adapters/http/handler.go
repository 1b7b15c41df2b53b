package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"basehub/contexts/platform-ops/saga-orchestrator/application"
	domainerrors "basehub/contexts/platform-ops/saga-orchestrator/domain/errors"
	"basehub/contexts/platform-ops/saga-orchestrator/ports"
	httptransport "basehub/contexts/platform-ops/saga-orchestrator/transport/http"
)

var validate = validator.New()

type Handler struct {
	Service *application.Service
	Logger  *slog.Logger
}

func (h Handler) StartSagaHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.StartSagaRequest,
) (httptransport.SagaResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.SagaResponse{}, domainerrors.ErrInvalidRequest
	}

	payload := make(map[string]any)
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return httptransport.SagaResponse{}, domainerrors.ErrInvalidRequest
		}
	}

	instance, err := h.Service.StartSaga(ctx, idempotencyKey, req.Name, payload)
	if err != nil {
		return httptransport.SagaResponse{}, err
	}
	resp := httptransport.SagaResponse{Status: "success"}
	resp.Data.Saga = sagaDTO(instance)
	return resp, nil
}

func (h Handler) GetSagaHandler(ctx context.Context, sagaID string) (httptransport.SagaResponse, error) {
	instance, records, err := h.Service.GetSaga(ctx, sagaID)
	if err != nil {
		return httptransport.SagaResponse{}, err
	}
	resp := httptransport.SagaResponse{Status: "success"}
	resp.Data.Saga = sagaDTO(instance)
	resp.Data.Steps = make([]httptransport.StepRecordDTO, 0, len(records))
	for _, record := range records {
		resp.Data.Steps = append(resp.Data.Steps, httptransport.StepRecordDTO{
			Step:      record.Step,
			Direction: string(record.Direction),
			Succeeded: record.Succeeded,
			At:        record.At.UTC().Format(time.RFC3339),
			Detail:    record.Detail,
		})
	}
	return resp, nil
}

func (h Handler) ListSagasHandler(ctx context.Context, name string, state string, limit int) (httptransport.SagaListResponse, error) {
	instances, err := h.Service.ListSagas(ctx, ports.ListSagasFilter{
		Name:  name,
		State: ports.SagaState(state),
		Limit: limit,
	})
	if err != nil {
		return httptransport.SagaListResponse{}, err
	}
	resp := httptransport.SagaListResponse{Status: "success"}
	resp.Data = make([]httptransport.SagaDTO, 0, len(instances))
	for _, instance := range instances {
		resp.Data = append(resp.Data, sagaDTO(instance))
	}
	return resp, nil
}

func sagaDTO(instance ports.SagaInstance) httptransport.SagaDTO {
	dto := httptransport.SagaDTO{
		ID:          instance.ID,
		Name:        instance.Name,
		State:       string(instance.State),
		CurrentStep: instance.CurrentStep,
		Payload:     json.RawMessage(instance.Payload),
		StartedAt:   instance.StartedAt.UTC().Format(time.RFC3339),
		Error:       instance.Error,
	}
	if !instance.FinishedAt.IsZero() {
		dto.FinishedAt = instance.FinishedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
