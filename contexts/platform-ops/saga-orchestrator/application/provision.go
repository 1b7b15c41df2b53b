package application

import (
	"context"
	"fmt"

	"basehub/contexts/platform-ops/saga-orchestrator/ports"
)

// ProvisionBaseSaga is the built-in workflow that prepares an Airtable base:
// verify the target table exists, seed its records, then refresh the gateway
// schema cache so readers see the result. Compensations remove the seeds and
// drop the cache again.
//
// Payload: base_id (string), table (string), seeds ([]map fields). The seed
// step records created ids under seeded_ids for its compensation.
func ProvisionBaseSaga(gateway ports.ProvisionGateway) SagaDefinition {
	return SagaDefinition{
		Name: "provision-base",
		Steps: []SagaStep{
			{
				Name: "check-schema",
				Forward: func(ctx context.Context, payload map[string]any) error {
					baseID, table, err := provisionTarget(payload)
					if err != nil {
						return err
					}
					return gateway.CheckTable(ctx, baseID, table)
				},
			},
			{
				Name: "seed-records",
				Forward: func(ctx context.Context, payload map[string]any) error {
					baseID, table, err := provisionTarget(payload)
					if err != nil {
						return err
					}
					seeds, _ := payload["seeds"].([]any)
					seeded := make([]any, 0, len(seeds))
					for i, seed := range seeds {
						fields, ok := seed.(map[string]any)
						if !ok {
							return fmt.Errorf("seed %d is not a field map", i)
						}
						recordID, err := gateway.CreateRecord(ctx, baseID, table, fields)
						if err != nil {
							payload["seeded_ids"] = seeded
							return err
						}
						seeded = append(seeded, recordID)
					}
					payload["seeded_ids"] = seeded
					return nil
				},
				Compensate: func(ctx context.Context, payload map[string]any) error {
					baseID, table, err := provisionTarget(payload)
					if err != nil {
						return err
					}
					seeded, _ := payload["seeded_ids"].([]any)
					for _, id := range seeded {
						recordID, ok := id.(string)
						if !ok {
							continue
						}
						if err := gateway.DeleteRecord(ctx, baseID, table, recordID); err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name: "refresh-cache",
				Forward: func(ctx context.Context, payload map[string]any) error {
					baseID, _, err := provisionTarget(payload)
					if err != nil {
						return err
					}
					return gateway.InvalidateSchema(ctx, baseID)
				},
				Compensate: func(ctx context.Context, payload map[string]any) error {
					baseID, _, err := provisionTarget(payload)
					if err != nil {
						return err
					}
					return gateway.InvalidateSchema(ctx, baseID)
				},
			},
		},
	}
}

func provisionTarget(payload map[string]any) (string, string, error) {
	baseID, _ := payload["base_id"].(string)
	table, _ := payload["table"].(string)
	if baseID == "" || table == "" {
		return "", "", fmt.Errorf("payload must carry base_id and table")
	}
	return baseID, table, nil
}
