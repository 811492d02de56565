package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"notaspese/internal/audit"
)

// SaveAuditEvent appends an audit event to the append-only trail, one row per
// field change (or a single row for events without changes). Used by the
// worker consuming the audit queue.
func (r *SQLiteRepository) SaveAuditEvent(ctx context.Context, ev audit.Event) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	occurred := ev.OccurredAt.UTC().Format(time.RFC3339Nano)

	changes := ev.Changes
	if len(changes) == 0 {
		changes = []audit.FieldChange{{}}
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, ch := range changes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO audit_events (kind, entity_id, action, actor, field, before_value, after_value, occurred_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				ev.Kind, ev.EntityID, string(ev.Action), ev.Actor, ch.Field, ch.Before, ch.After, occurred,
			)
			if err != nil {
				return fmt.Errorf("insert audit event: %w", err)
			}
		}
		return nil
	})
}

// StoredAuditEvent is one persisted row of the audit trail.
type StoredAuditEvent struct {
	ID         int64
	Kind       string
	EntityID   string
	Action     string
	Actor      string
	Field      string
	Before     string
	After      string
	OccurredAt time.Time
}

// ListAuditEvents returns the recorded trail for one entity, oldest first.
func (r *SQLiteRepository) ListAuditEvents(ctx context.Context, kind, entityID string) ([]StoredAuditEvent, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, entity_id, action, actor, field, before_value, after_value, occurred_at
		 FROM audit_events WHERE kind = ? AND entity_id = ? ORDER BY id`,
		kind, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("select audit events: %w", err)
	}
	defer rows.Close()

	events := []StoredAuditEvent{}
	for rows.Next() {
		var ev StoredAuditEvent
		var occurred string
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.EntityID, &ev.Action, &ev.Actor, &ev.Field, &ev.Before, &ev.After, &occurred); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.OccurredAt, err = time.Parse(time.RFC3339Nano, occurred)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", occurred, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
