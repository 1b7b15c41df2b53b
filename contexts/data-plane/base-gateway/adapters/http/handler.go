package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"basehub/contexts/data-plane/base-gateway/application"
	domainerrors "basehub/contexts/data-plane/base-gateway/domain/errors"
	"basehub/contexts/data-plane/base-gateway/ports"
	httptransport "basehub/contexts/data-plane/base-gateway/transport/http"
)

// validate is package-level; constructing a validator per request is costly.
var validate = validator.New()

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ListTablesHandler(ctx context.Context, baseID string) (httptransport.ListTablesResponse, error) {
	tables, err := h.Service.ListTables(ctx, baseID)
	if err != nil {
		return httptransport.ListTablesResponse{}, err
	}
	resp := httptransport.ListTablesResponse{Status: "success", BaseID: baseID}
	resp.Data = make([]httptransport.TableDTO, 0, len(tables))
	for _, table := range tables {
		dto := httptransport.TableDTO{ID: table.ID, Name: table.Name}
		for _, field := range table.Fields {
			dto.Fields = append(dto.Fields, httptransport.FieldDTO{
				ID:   field.ID,
				Name: field.Name,
				Type: field.Type,
			})
		}
		resp.Data = append(resp.Data, dto)
	}
	return resp, nil
}

func (h Handler) ListRecordsHandler(ctx context.Context, req httptransport.ListRecordsRequest) (httptransport.RecordPageResponse, error) {
	page, err := h.Service.ListRecords(ctx, req.BaseID, ports.ListRecordsQuery{
		Table:         req.Table,
		View:          req.View,
		PageSize:      req.PageSize,
		MaxRecords:    req.MaxRecords,
		Offset:        req.Offset,
		FilterFormula: req.FilterFormula,
	})
	if err != nil {
		return httptransport.RecordPageResponse{}, err
	}
	return recordPageResponse(page), nil
}

func (h Handler) GetRecordHandler(ctx context.Context, baseID string, table string, recordID string) (httptransport.RecordResponse, error) {
	item, err := h.Service.GetRecord(ctx, baseID, table, recordID)
	if err != nil {
		return httptransport.RecordResponse{}, err
	}
	return httptransport.RecordResponse{Status: "success", Data: recordDTO(item)}, nil
}

func (h Handler) CreateRecordHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.CreateRecordRequest,
) (httptransport.RecordResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.RecordResponse{}, domainerrors.ErrInvalidRequest
	}
	item, err := h.Service.CreateRecord(ctx, idempotencyKey, req.BaseID, req.Table, req.Fields)
	if err != nil {
		return httptransport.RecordResponse{}, err
	}
	return httptransport.RecordResponse{Status: "success", Data: recordDTO(item)}, nil
}

func (h Handler) UpdateRecordHandler(
	ctx context.Context,
	idempotencyKey string,
	table string,
	recordID string,
	req httptransport.UpdateRecordRequest,
) (httptransport.RecordResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.RecordResponse{}, domainerrors.ErrEmptyUpdate
	}
	item, err := h.Service.UpdateRecord(ctx, idempotencyKey, req.BaseID, table, recordID, req.Fields)
	if err != nil {
		return httptransport.RecordResponse{}, err
	}
	return httptransport.RecordResponse{Status: "success", Data: recordDTO(item)}, nil
}

func (h Handler) DeleteRecordHandler(
	ctx context.Context,
	idempotencyKey string,
	baseID string,
	table string,
	recordID string,
) (httptransport.DeleteRecordResponse, error) {
	if err := h.Service.DeleteRecord(ctx, idempotencyKey, baseID, table, recordID); err != nil {
		return httptransport.DeleteRecordResponse{}, err
	}
	resp := httptransport.DeleteRecordResponse{Status: "success"}
	resp.Data.Deleted = recordID
	return resp, nil
}

func (h Handler) SearchRecordsHandler(ctx context.Context, req httptransport.SearchRecordsRequest) (httptransport.RecordPageResponse, error) {
	if err := validate.Struct(req); err != nil {
		return httptransport.RecordPageResponse{}, domainerrors.ErrInvalidRequest
	}
	page, err := h.Service.SearchRecords(ctx, req.BaseID, req.Table, req.Field, req.Value)
	if err != nil {
		return httptransport.RecordPageResponse{}, err
	}
	return recordPageResponse(page), nil
}

func (h Handler) ListWriteAuditHandler(ctx context.Context, baseID string, limit int) (httptransport.WriteAuditResponse, error) {
	entries, err := h.Service.ListWriteAudit(ctx, baseID, limit)
	if err != nil {
		return httptransport.WriteAuditResponse{}, err
	}
	resp := httptransport.WriteAuditResponse{Status: "success"}
	resp.Data = make([]httptransport.WriteAuditDTO, 0, len(entries))
	for _, entry := range entries {
		resp.Data = append(resp.Data, httptransport.WriteAuditDTO{
			AuditID:   entry.AuditID,
			BaseID:    entry.BaseID,
			Table:     entry.Table,
			RecordID:  entry.RecordID,
			Operation: entry.Operation,
			At:        entry.At.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func recordDTO(item ports.RecordItem) httptransport.RecordDTO {
	dto := httptransport.RecordDTO{ID: item.ID, Fields: item.Fields}
	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func recordPageResponse(page ports.RecordPage) httptransport.RecordPageResponse {
	resp := httptransport.RecordPageResponse{Status: "success"}
	resp.Data.Offset = page.Offset
	resp.Data.Records = make([]httptransport.RecordDTO, 0, len(page.Records))
	for _, record := range page.Records {
		resp.Data.Records = append(resp.Data.Records, recordDTO(record))
	}
	return resp
}
