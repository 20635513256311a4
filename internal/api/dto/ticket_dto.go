package dto

import (
	"time"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Subcategory *string               `json:"subcategory,omitempty"`
	Type        string                `json:"type"`
	Department  string                `json:"department"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	IsSimple    bool                  `json:"is_simple,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
}

// UpdateTicketRequest is a partial update. Absent fields stay unchanged.
type UpdateTicketRequest struct {
	Subject             *string                `json:"subject,omitempty"`
	Description         *string                `json:"description,omitempty"`
	Category            *string                `json:"category,omitempty"`
	Subcategory         *string                `json:"subcategory,omitempty"`
	Type                *string                `json:"type,omitempty"`
	Department          *string                `json:"department,omitempty"`
	Priority            *domain.TicketPriority `json:"priority,omitempty"`
	Status              *domain.TicketStatus   `json:"status,omitempty"`
	Progress            *int                   `json:"progress,omitempty"`
	EstimatedCompletion *time.Time             `json:"estimated_completion,omitempty"`
	Tags                []string               `json:"tags,omitempty"`
	Metadata            map[string]any         `json:"metadata,omitempty"`
}

// ForwardTicketRequest payload for one disposition hop.
type ForwardTicketRequest struct {
	ToUserID       int64                    `json:"to_user_id"`
	Reason         string                   `json:"reason"`
	Notes          string                   `json:"notes,omitempty"`
	ProgressUpdate *int                     `json:"progress_update,omitempty"`
	ActionType     domain.DispositionAction `json:"action_type,omitempty"`
}

// ReassignTicketRequest payload.
type ReassignTicketRequest struct {
	AssigneeID int64  `json:"assignee_id"`
	Reason     string `json:"reason,omitempty"`
}

// AutoAssignRequest payload.
type AutoAssignRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

// ProgressRequest payload.
type ProgressRequest struct {
	Progress int `json:"progress"`
}

// QuickResolveRequest payload.
type QuickResolveRequest struct {
	Solution string `json:"solution,omitempty"`
}

// ReasonRequest payload for cancel and reopen.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RateTicketRequest payload.
type RateTicketRequest struct {
	Rating int `json:"rating"`
}

// BulkUpdateRequest payload.
type BulkUpdateRequest struct {
	TicketIDs []int64             `json:"ticket_ids"`
	Update    UpdateTicketRequest `json:"update"`
}

// TicketResponse is the canonical ticket representation.
type TicketResponse struct {
	ID                   int64                 `json:"id"`
	TicketNumber         string                `json:"ticket_number"`
	Subject              string                `json:"subject"`
	Description          string                `json:"description"`
	Status               domain.TicketStatus   `json:"status"`
	Priority             domain.TicketPriority `json:"priority"`
	Category             string                `json:"category"`
	Subcategory          *string               `json:"subcategory,omitempty"`
	Type                 string                `json:"type"`
	Department           string                `json:"department"`
	Progress             int                   `json:"progress"`
	IsSimple             bool                  `json:"is_simple"`
	CurrentHandler       *int64                `json:"current_handler,omitempty"`
	UserID               int64                 `json:"user_id"`
	AssignedTo           *int64                `json:"assigned_to,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	EstimatedCompletion  *time.Time            `json:"estimated_completion,omitempty"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
	SLADeadline          *time.Time            `json:"sla_deadline,omitempty"`
	SLAStatus            domain.SLAStatus      `json:"sla_status"`
	EscalationLevel      int                   `json:"escalation_level"`
	ReopenCount          int                   `json:"reopen_count"`
	CustomerSatisfaction *int                  `json:"customer_satisfaction,omitempty"`
	ResolutionTime       *int                  `json:"resolution_time,omitempty"`
	FirstResponseTime    *int                  `json:"first_response_time,omitempty"`
	Tags                 []string              `json:"tags,omitempty"`
	Metadata             map[string]any        `json:"metadata,omitempty"`
}

// FromTicket maps the domain record to its response shape.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                   ticket.ID,
		TicketNumber:         ticket.TicketNumber,
		Subject:              ticket.Subject,
		Description:          ticket.Description,
		Status:               ticket.Status,
		Priority:             ticket.Priority,
		Category:             ticket.Category,
		Subcategory:          ticket.Subcategory,
		Type:                 ticket.Type,
		Department:           ticket.Department,
		Progress:             ticket.Progress,
		IsSimple:             ticket.IsSimple,
		CurrentHandler:       ticket.CurrentHandler,
		UserID:               ticket.UserID,
		AssignedTo:           ticket.AssignedTo,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
		EstimatedCompletion:  ticket.EstimatedCompletion,
		CompletedAt:          ticket.CompletedAt,
		SLADeadline:          ticket.SLADeadline,
		SLAStatus:            ticket.SLAStatus,
		EscalationLevel:      ticket.EscalationLevel,
		ReopenCount:          ticket.ReopenCount,
		CustomerSatisfaction: ticket.CustomerSatisfaction,
		ResolutionTime:       ticket.ResolutionTime,
		FirstResponseTime:    ticket.FirstResponseTime,
		Tags:                 ticket.Tags,
		Metadata:             ticket.Metadata,
	}
}

// FromTickets maps a slice of tickets.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, FromTicket(&tickets[i]))
	}
	return out
}

// DispositionResponse is one chain entry.
type DispositionResponse struct {
	ID                     int64                    `json:"id"`
	TicketID               int64                    `json:"ticket_id"`
	FromUserID             *int64                   `json:"from_user_id,omitempty"`
	ToUserID               int64                    `json:"to_user_id"`
	Reason                 string                   `json:"reason"`
	Notes                  string                   `json:"notes,omitempty"`
	ProgressUpdate         *int                     `json:"progress_update,omitempty"`
	ActionType             domain.DispositionAction `json:"action_type"`
	ExpectedCompletionTime *time.Time               `json:"expected_completion_time,omitempty"`
	SLAImpact              domain.SLAImpact         `json:"sla_impact"`
	CreatedAt              time.Time                `json:"created_at"`
}

// FromDisposition maps one chain entry.
func FromDisposition(event *domain.DispositionEvent) DispositionResponse {
	return DispositionResponse{
		ID:                     event.ID,
		TicketID:               event.TicketID,
		FromUserID:             event.FromUserID,
		ToUserID:               event.ToUserID,
		Reason:                 event.Reason,
		Notes:                  event.Notes,
		ProgressUpdate:         event.ProgressUpdate,
		ActionType:             event.ActionType,
		ExpectedCompletionTime: event.ExpectedCompletionTime,
		SLAImpact:              event.SLAImpact,
		CreatedAt:              event.CreatedAt,
	}
}

// FromDispositions maps a chain.
func FromDispositions(chain []domain.DispositionEvent) []DispositionResponse {
	out := make([]DispositionResponse, 0, len(chain))
	for i := range chain {
		out = append(out, FromDisposition(&chain[i]))
	}
	return out
}

// WorkloadResponse is one candidate row of the workload report.
type WorkloadResponse struct {
	UserID        int64  `json:"user_id"`
	Name          string `json:"name"`
	ActiveTickets int    `json:"active_tickets"`
	UrgentTickets int    `json:"urgent_tickets"`
}

// FromWorkloads maps workload snapshots.
func FromWorkloads(snapshots []domain.WorkloadSnapshot) []WorkloadResponse {
	out := make([]WorkloadResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		out = append(out, WorkloadResponse{
			UserID:        snapshot.User.ID,
			Name:          snapshot.User.Name,
			ActiveTickets: snapshot.ActiveTickets,
			UrgentTickets: snapshot.UrgentTickets,
		})
	}
	return out
}
