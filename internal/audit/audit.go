// Package audit defines the append-only change trail emitted on every
// successful entity mutation. The core only emits events; interpreting and
// persisting them is the job of whatever Recorder is plugged in.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Action classifies what happened to the entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// FieldChange captures a single field-level before/after pair.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Event is an immutable record of one entity mutation.
type Event struct {
	Kind       string        `json:"kind"`
	EntityID   string        `json:"entity_id"`
	Action     Action        `json:"action"`
	Actor      string        `json:"actor"`
	Changes    []FieldChange `json:"changes,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Recorder is the audit sink. Implementations must be safe for concurrent
// use; a failing sink must never fail the mutation that produced the event.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// NewEvent stamps an event with the context's actor and the current time.
func NewEvent(ctx context.Context, kind, entityID string, action Action, changes []FieldChange) Event {
	return Event{
		Kind:       kind,
		EntityID:   entityID,
		Action:     action,
		Actor:      ActorFromContext(ctx),
		Changes:    changes,
		OccurredAt: time.Now().UTC(),
	}
}

type actorKey struct{}

// DefaultActor is used when no actor was attached to the request.
const DefaultActor = "anonymous"

// WithActor attaches the acting principal to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting principal, or DefaultActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return DefaultActor
}

// LogRecorder writes events to the structured log. It is the fallback sink
// when no message broker is configured.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, ev Event) error {
	slog.InfoContext(ctx, "Audit event",
		"kind", ev.Kind,
		"entity_id", ev.EntityID,
		"action", string(ev.Action),
		"actor", ev.Actor,
		"changes", len(ev.Changes))
	return nil
}

// NopRecorder discards events. Used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }
