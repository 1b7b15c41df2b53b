package application

import (
	"context"
	"encoding/json"
)

// StepFunc is one direction of a saga step. Steps execute at least once, so
// handlers must tolerate re-execution.
type StepFunc func(ctx context.Context, payload map[string]any) error

type SagaStep struct {
	Name       string
	Forward    StepFunc
	Compensate StepFunc
}

type SagaDefinition struct {
	Name  string
	Steps []SagaStep
}

func decodePayload(raw []byte) (map[string]any, error) {
	payload := make(map[string]any)
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
