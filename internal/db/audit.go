package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// AppendAudit inserts an immutable audit event.
func (db *DB) AppendAudit(ctx context.Context, event types.AuditEvent) error {
	payloadJSON, err := marshalNullable(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO audit_events (id, actor_type, actor_id, action, entity_type, entity_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.ActorType, event.ActorID, event.Action, event.EntityType, event.EntityID, payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event %s: %w", event.Action, err)
	}
	return nil
}

// ListAuditEvents returns an entity's events oldest first.
func (db *DB) ListAuditEvents(ctx context.Context, entityType, entityID string) ([]types.AuditEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, actor_type, actor_id, action, entity_type, entity_id, payload, created_at
		 FROM audit_events WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY seq`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []types.AuditEvent
	for rows.Next() {
		var e types.AuditEvent
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.ActorType, &e.ActorID, &e.Action, &e.EntityType,
			&e.EntityID, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if payloadJSON != nil {
			_ = json.Unmarshal(payloadJSON, &e.Payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
