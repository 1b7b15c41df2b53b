package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FieldDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableDTO struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Fields []FieldDTO `json:"fields"`
}

type ListTablesResponse struct {
	Status string     `json:"status"`
	BaseID string     `json:"base_id"`
	Data   []TableDTO `json:"data"`
}

type RecordDTO struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt string         `json:"created_at,omitempty"`
}

type ListRecordsRequest struct {
	BaseID        string
	Table         string
	View          string
	PageSize      int
	MaxRecords    int
	Offset        string
	FilterFormula string
}

type RecordPageResponse struct {
	Status string `json:"status"`
	Data   struct {
		Records []RecordDTO `json:"records"`
		Offset  string      `json:"offset,omitempty"`
	} `json:"data"`
}

type RecordResponse struct {
	Status string    `json:"status"`
	Data   RecordDTO `json:"data"`
}

type CreateRecordRequest struct {
	BaseID string         `json:"base_id,omitempty"`
	Table  string         `json:"table" validate:"required"`
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

type UpdateRecordRequest struct {
	BaseID string         `json:"base_id,omitempty"`
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

type DeleteRecordResponse struct {
	Status string `json:"status"`
	Data   struct {
		Deleted string `json:"deleted"`
	} `json:"data"`
}

type SearchRecordsRequest struct {
	BaseID string `json:"base_id,omitempty"`
	Table  string `json:"table" validate:"required"`
	Field  string `json:"field" validate:"required"`
	Value  string `json:"value" validate:"required"`
}

type WriteAuditDTO struct {
	AuditID   string `json:"audit_id"`
	BaseID    string `json:"base_id"`
	Table     string `json:"table"`
	RecordID  string `json:"record_id"`
	Operation string `json:"operation"`
	At        string `json:"at"`
}

type WriteAuditResponse struct {
	Status string          `json:"status"`
	Data   []WriteAuditDTO `json:"data"`
}
