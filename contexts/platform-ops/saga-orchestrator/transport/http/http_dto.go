package http

import "encoding/json"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StartSagaRequest struct {
	Name    string          `json:"name" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type SagaDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	State       string          `json:"state"`
	CurrentStep int             `json:"current_step"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	StartedAt   string          `json:"started_at"`
	FinishedAt  string          `json:"finished_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type StepRecordDTO struct {
	Step      string `json:"step"`
	Direction string `json:"direction"`
	Succeeded bool   `json:"succeeded"`
	At        string `json:"at"`
	Detail    string `json:"detail,omitempty"`
}

type SagaResponse struct {
	Status string `json:"status"`
	Data   struct {
		Saga  SagaDTO         `json:"saga"`
		Steps []StepRecordDTO `json:"steps,omitempty"`
	} `json:"data"`
}

type SagaListResponse struct {
	Status string    `json:"status"`
	Data   []SagaDTO `json:"data"`
}
