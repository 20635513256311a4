package events

import (
	"time"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketForwarded  EventType = "ticket_forwarded"
	EventTicketReassigned EventType = "ticket_reassigned"
	EventTicketResolved   EventType = "ticket_resolved"
	EventTicketReopened   EventType = "ticket_reopened"
	EventTicketCancelled  EventType = "ticket_cancelled"
	EventSLAAtRisk        EventType = "sla_at_risk"
	EventSLABreached      EventType = "sla_breached"
)

// AllEventTypes lists every event the dispatcher can carry, for bridge fan-out.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketAssigned,
	EventTicketForwarded,
	EventTicketReassigned,
	EventTicketResolved,
	EventTicketReopened,
	EventTicketCancelled,
	EventSLAAtRisk,
	EventSLABreached,
}

// Actor encapsulates who triggered an event. A nil UserID means the system.
type Actor struct {
	UserID *int64          `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Department   string                `json:"department"`
	Category     string                `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Subject      string                `json:"subject"`
	CreatorID    int64                 `json:"creator_id"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID int64  `json:"assignee_id"`
	Strategy   string `json:"strategy,omitempty"`
}

// TicketForwardedPayload payload.
type TicketForwardedPayload struct {
	TicketNumber string                   `json:"ticket_number"`
	FromUserID   *int64                   `json:"from_user_id,omitempty"`
	ToUserID     int64                    `json:"to_user_id"`
	ActionType   domain.DispositionAction `json:"action_type"`
	SLAImpact    domain.SLAImpact         `json:"sla_impact"`
	Reason       string                   `json:"reason,omitempty"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	OldAssigneeID *int64 `json:"old_assignee_id,omitempty"`
	NewAssigneeID int64  `json:"new_assignee_id"`
	CreatorID     int64  `json:"creator_id"`
	TicketNumber  string `json:"ticket_number"`
	Reason        string `json:"reason,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	TicketNumber      string `json:"ticket_number"`
	CreatorID         int64  `json:"creator_id"`
	ResolutionMinutes int    `json:"resolution_minutes"`
	QuickResolve      bool   `json:"quick_resolve"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	ReopenCount int `json:"reopen_count"`
}

// SLAStatusPayload payload for at-risk and breach events.
type SLAStatusPayload struct {
	TicketNumber string           `json:"ticket_number"`
	SLAStatus    domain.SLAStatus `json:"sla_status"`
	AssigneeID   *int64           `json:"assignee_id,omitempty"`
	Deadline     time.Time        `json:"deadline"`
}
