package amqp

import (
	"encoding/json"

	"notaspese/internal/audit"
)

// MarshalAuditEvent encodes an audit event for the wire.
func MarshalAuditEvent(ev audit.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// UnmarshalAuditEvent decodes an audit event from the wire.
func UnmarshalAuditEvent(data []byte) (audit.Event, error) {
	var ev audit.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return audit.Event{}, err
	}
	return ev, nil
}
