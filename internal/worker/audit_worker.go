// Package worker persists audit events consumed from the message bus.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"notaspese/internal/audit"
)

// EventStore is the persistence surface the worker writes the trail to.
type EventStore interface {
	SaveAuditEvent(ctx context.Context, ev audit.Event) error
}

// RowAppender mirrors events to a secondary sink, typically a spreadsheet.
type RowAppender interface {
	Append(ctx context.Context, ev audit.Event) error
}

// AuditWorker handles audit events from the queue: each event lands in the
// append-only table, and optionally in a spreadsheet for the finance team.
type AuditWorker struct {
	store EventStore
	sheet RowAppender
}

// NewAuditWorker creates a worker. sheet may be nil when no spreadsheet
// mirror is configured.
func NewAuditWorker(store EventStore, sheet RowAppender) *AuditWorker {
	return &AuditWorker{store: store, sheet: sheet}
}

// HandleEvent processes one consumed event. A storage failure is returned so
// the message is redelivered; a spreadsheet failure is only logged, the
// database row is the source of truth.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev audit.Event) error {
	slog.InfoContext(ctx, "processing audit event",
		"kind", ev.Kind,
		"entity_id", ev.EntityID,
		"action", ev.Action,
		"actor", ev.Actor,
		"changes", len(ev.Changes))

	if err := w.store.SaveAuditEvent(ctx, ev); err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}

	if w.sheet != nil {
		if err := w.sheet.Append(ctx, ev); err != nil {
			slog.WarnContext(ctx, "spreadsheet mirror failed",
				"kind", ev.Kind,
				"entity_id", ev.EntityID,
				"error", err)
		}
	}
	return nil
}
