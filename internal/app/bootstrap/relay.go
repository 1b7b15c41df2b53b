package bootstrap

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	basegatewayapp "basehub/contexts/data-plane/base-gateway/application"
	contractsv1 "basehub/contracts/gen/events/v1"
	"basehub/internal/platform/messaging"
)

const (
	auditRelayTopic = "gateway.writes"
	auditRelayBatch = 200
)

// AuditRelay publishes base gateway write-audit entries onto the event bus so
// downstream consumers can react to record mutations. Entries carry stable
// audit IDs; the relay keeps a seen-set so a sweep never publishes twice.
type AuditRelay struct {
	Gateway   basegatewayapp.Service
	Publisher *messaging.Kafka
	BaseID    string
	Logger    *slog.Logger

	seen map[string]struct{}
}

func (r *AuditRelay) RunOnce(ctx context.Context) error {
	if r.BaseID == "" {
		return nil
	}
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}

	entries, err := r.Gateway.ListWriteAudit(ctx, r.BaseID, auditRelayBatch)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if _, done := r.seen[entry.AuditID]; done {
			continue
		}

		data, err := json.Marshal(map[string]any{
			"audit_id":  entry.AuditID,
			"base_id":   entry.BaseID,
			"table":     entry.Table,
			"record_id": entry.RecordID,
			"operation": entry.Operation,
			"at":        entry.At.UTC(),
		})
		if err != nil {
			return err
		}

		event := contractsv1.Envelope{
			EventID:          uuid.NewString(),
			EventType:        "gateway.record_" + entry.Operation,
			OccurredAt:       time.Now().UTC(),
			SourceService:    "base-gateway",
			TraceID:          entry.AuditID,
			SchemaVersion:    1,
			PartitionKeyPath: "base_id",
			PartitionKey:     entry.BaseID,
			Data:             data,
		}
		if err := r.Publisher.Publish(ctx, auditRelayTopic, event); err != nil {
			return err
		}
		r.seen[entry.AuditID] = struct{}{}
	}
	return nil
}
