package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusDisposisi  TicketStatus = "disposisi"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// SLAStatus tracks a ticket against its resolution deadline.
type SLAStatus string

const (
	SLAStatusOnTime   SLAStatus = "on-time"
	SLAStatusAtRisk   SLAStatus = "at-risk"
	SLAStatusBreached SLAStatus = "breached"
)

// Ticket is the aggregate for service-desk requests.
type Ticket struct {
	ID                   int64
	TicketNumber         string
	Subject              string
	Description          string
	Status               TicketStatus
	Priority             TicketPriority
	Category             string
	Subcategory          *string
	Type                 string
	Department           string
	Progress             int
	IsSimple             bool
	CurrentHandler       *int64
	UserID               int64
	AssignedTo           *int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	EstimatedCompletion  *time.Time
	CompletedAt          *time.Time
	SLADeadline          *time.Time
	SLAStatus            SLAStatus
	EscalationLevel      int
	ReopenCount          int
	CustomerSatisfaction *int
	ResolutionTime       *int
	FirstResponseTime    *int
	Tags                 []string
	Metadata             map[string]any
}

// IsOpen reports whether the ticket still counts toward SLA tracking.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusCompleted && t.Status != TicketStatusCancelled
}
