package domain

import "time"

// AuditLogEntry is a write-once compliance record. Business logic never reads it.
type AuditLogEntry struct {
	ID        int64
	TicketID  int64
	ActorID   *int64
	Action    string
	OldValue  map[string]any
	NewValue  map[string]any
	CreatedAt time.Time
}
