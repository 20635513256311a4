package domain

import "time"

// NotificationType labels why a notification was emitted.
type NotificationType string

const (
	NotifyTicketCreated   NotificationType = "ticket_created"
	NotifyTicketAssigned  NotificationType = "ticket_assigned"
	NotifyTicketDisposisi NotificationType = "ticket_disposisi"
	NotifyTicketResolved  NotificationType = "ticket_resolved"
	NotifySLAAtRisk       NotificationType = "sla_at_risk"
	NotifySLABreach       NotificationType = "sla_breach"
)

// Notification is a persisted per-user message.
type Notification struct {
	ID              int64
	UserID          int64
	Type            NotificationType
	Title           string
	Message         string
	RelatedTicketID *int64
	IsRead          bool
	ReadAt          *time.Time
	CreatedAt       time.Time
}
