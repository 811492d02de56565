package amqp

import (
	"testing"
	"time"

	"notaspese/internal/audit"
)

func TestAuditEventRoundTrip(t *testing.T) {
	ev := audit.Event{
		Kind:     "employee",
		EntityID: "abc-123",
		Action:   audit.ActionUpdate,
		Actor:    "asterios",
		Changes: []audit.FieldChange{
			{Field: "age", Before: "25", After: "30"},
		},
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	body, err := MarshalAuditEvent(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalAuditEvent(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != ev.Kind || got.EntityID != ev.EntityID || got.Action != ev.Action {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Changes) != 1 || got.Changes[0] != ev.Changes[0] {
		t.Fatalf("changes mismatch: %+v", got.Changes)
	}
	if !got.OccurredAt.Equal(ev.OccurredAt) {
		t.Fatalf("timestamp mismatch: %v", got.OccurredAt)
	}
}

func TestUnmarshalAuditEventRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalAuditEvent([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
