package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
	"github.com/campusdesk/servicedesk/internal/sla"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// LifecycleService owns ticket status transitions and completion rules.
type LifecycleService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	audit      repository.AuditRepository
	policy     *sla.Policy
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle engine.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	AuditRepo  repository.AuditRepository
	Policy     *sla.Policy
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		audit:      deps.AuditRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Category    string
	Subcategory *string
	Type        string
	Department  string
	Priority    domain.TicketPriority
	IsSimple    bool
	Tags        []string
	Metadata    map[string]any
}

// TicketPatch is a partial update. Nil fields are left untouched.
type TicketPatch struct {
	Subject             *string
	Description         *string
	Category            *string
	Subcategory         *string
	Type                *string
	Department          *string
	Priority            *domain.TicketPriority
	Status              *domain.TicketStatus
	Progress            *int
	EstimatedCompletion *time.Time
	Tags                []string
	Metadata            map[string]any
}

// BulkResult reports the outcome for one ticket of a bulk operation.
type BulkResult struct {
	TicketID int64
	Ticket   *domain.Ticket
	Err      error
}

// reopenedProgress is what a fully-resolved ticket drops back to on reopen,
// since progress 100 is reserved for completed tickets.
const reopenedProgress = 99

// Status machine per the disposition workflow: pending tickets are either
// forwarded (disposisi) or picked up directly; completed tickets may be
// reopened; cancelled is terminal.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending:    {domain.TicketStatusDisposisi, domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusDisposisi:  {domain.TicketStatusDisposisi, domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress: {domain.TicketStatusCompleted, domain.TicketStatusDisposisi, domain.TicketStatusCancelled},
	domain.TicketStatusCompleted:  {domain.TicketStatusInProgress},
	domain.TicketStatusCancelled:  {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CreateTicket validates input, derives the SLA deadline, and persists the
// ticket in its initial state.
func (s *LifecycleService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	missing := []string{}
	for field, value := range map[string]string{
		"subject":     input.Subject,
		"description": input.Description,
		"category":    input.Category,
		"type":        input.Type,
		"department":  input.Department,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	createdAt := s.now()
	deadline := s.policy.Deadline(createdAt, priority, input.Category)
	ticket := &domain.Ticket{
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusPending,
		Priority:    priority,
		Category:    input.Category,
		Subcategory: input.Subcategory,
		Type:        input.Type,
		Department:  input.Department,
		Progress:    0,
		IsSimple:    input.IsSimple,
		UserID:      actor.ID,
		SLADeadline: &deadline,
		SLAStatus:   domain.SLAStatusOnTime,
		Tags:        input.Tags,
		Metadata:    input.Metadata,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewStorageError("create ticket", err)
	}

	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_created", nil, map[string]any{
		"ticket_number": ticket.TicketNumber,
		"status":        ticket.Status,
		"priority":      ticket.Priority,
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(actor),
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Department:   ticket.Department,
			Category:     ticket.Category,
			Priority:     ticket.Priority,
			Subject:      ticket.Subject,
			CreatorID:    ticket.UserID,
		},
	})
	return ticket, nil
}

// GetTicket loads one ticket, enforcing creator-or-handler visibility for
// mahasiswa and dosen.
func (s *LifecycleService) GetTicket(ctx context.Context, actor *domain.User, id int64) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canActOnTicket(actor, ticket) && ticket.UserID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets applies listing filters. Non-privileged callers are scoped to
// tickets they created or handle.
func (s *LifecycleService) ListTickets(ctx context.Context, actor *domain.User, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	if actor == nil {
		return nil, 0, apperrors.NewUnauthorized("user required")
	}
	if !actor.CanManageTickets() {
		id := actor.ID
		filter.AssignedOrCreated = &id
	}
	tickets, total, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewStorageError("list tickets", err)
	}
	return tickets, total, nil
}

// UpdateTicket applies a partial update. Status changes go through the
// transition table; illegal jumps are rejected with a conflict.
func (s *LifecycleService) UpdateTicket(ctx context.Context, actor *domain.User, id int64, patch TicketPatch) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canActOnTicket(actor, ticket) && ticket.UserID != actor.ID {
		return nil, apperrors.NewForbidden("no permission to update this ticket")
	}

	oldStatus := ticket.Status
	if patch.Subject != nil {
		ticket.Subject = strings.TrimSpace(*patch.Subject)
	}
	if patch.Description != nil {
		ticket.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		ticket.Category = *patch.Category
	}
	if patch.Subcategory != nil {
		ticket.Subcategory = patch.Subcategory
	}
	if patch.Type != nil {
		ticket.Type = *patch.Type
	}
	if patch.Department != nil {
		ticket.Department = *patch.Department
	}
	if patch.Priority != nil {
		if !domain.ValidPriority(*patch.Priority) {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
		}
		// The SLA deadline is never recomputed on priority change.
		ticket.Priority = *patch.Priority
	}
	if patch.EstimatedCompletion != nil {
		ticket.EstimatedCompletion = patch.EstimatedCompletion
	}
	if patch.Tags != nil {
		ticket.Tags = patch.Tags
	}
	if patch.Metadata != nil {
		ticket.Metadata = patch.Metadata
	}
	if patch.Progress != nil {
		if err := s.applyProgress(ticket, *patch.Progress, patch.Status); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && *patch.Status != oldStatus {
		if err := s.applyStatus(ticket, *patch.Status); err != nil {
			return nil, err
		}
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapStorageErr("update ticket", err)
	}

	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_updated",
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status, "progress": ticket.Progress})
	s.publishStatusEvents(ctx, actor, ticket, oldStatus)
	return ticket, nil
}

// UpdateProgress moves the progress bar and stamps first response on the
// first handler activity.
func (s *LifecycleService) UpdateProgress(ctx context.Context, actor *domain.User, id int64, progress int) (*domain.Ticket, error) {
	patch := TicketPatch{Progress: &progress}
	return s.UpdateTicket(ctx, actor, id, patch)
}

// QuickResolve is the fast path for tickets flagged simple: complete in one
// step without a disposition chain.
func (s *LifecycleService) QuickResolve(ctx context.Context, actor *domain.User, id int64, solution string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canActOnTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("only the handler, assignee, or an admin can quick-resolve")
	}
	if !ticket.IsSimple {
		return nil, apperrors.NewConflict("ticket is not flagged for quick resolution", map[string]any{"ticket_id": id})
	}
	if ticket.Status == domain.TicketStatusCompleted || ticket.Status == domain.TicketStatusCancelled {
		return nil, apperrors.NewConflict("ticket already closed", map[string]any{"status": ticket.Status})
	}

	oldStatus := ticket.Status
	s.complete(ticket)
	if strings.TrimSpace(solution) != "" {
		if ticket.Metadata == nil {
			ticket.Metadata = map[string]any{}
		}
		ticket.Metadata["solution"] = strings.TrimSpace(solution)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapStorageErr("quick resolve ticket", err)
	}

	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_quick_resolved",
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status, "solution": solution})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		Actor:    userActor(actor),
		Payload: events.TicketResolvedPayload{
			TicketNumber:      ticket.TicketNumber,
			CreatorID:         ticket.UserID,
			ResolutionMinutes: derefInt(ticket.ResolutionTime),
			QuickResolve:      true,
		},
	})
	return ticket, nil
}

// Reassign hands the ticket to a new assignee. Restricted to admin and
// executive roles.
func (s *LifecycleService) Reassign(ctx context.Context, actor *domain.User, id, newAssigneeID int64, reason string) (*domain.Ticket, error) {
	if actor == nil || !actor.CanManageTickets() {
		return nil, apperrors.NewForbidden("reassignment requires admin or executive role")
	}
	assignee, err := s.users.GetByID(ctx, newAssigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": newAssigneeID})
		}
		return nil, apperrors.NewStorageError("load assignee", err)
	}
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	oldAssignee := ticket.AssignedTo
	ticket.AssignedTo = &assignee.ID
	ticket.CurrentHandler = &assignee.ID
	if ticket.Status == domain.TicketStatusPending {
		ticket.Status = domain.TicketStatusInProgress
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapStorageErr("reassign ticket", err)
	}

	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_reassigned",
		map[string]any{"assigned_to": oldAssignee},
		map[string]any{"assigned_to": assignee.ID, "reason": reason})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticket.ID,
		Actor:    userActor(actor),
		Payload: events.TicketReassignedPayload{
			OldAssigneeID: oldAssignee,
			NewAssigneeID: assignee.ID,
			CreatorID:     ticket.UserID,
			TicketNumber:  ticket.TicketNumber,
			Reason:        reason,
		},
	})
	return ticket, nil
}

// CancelTicket moves an open ticket to the terminal cancelled state.
func (s *LifecycleService) CancelTicket(ctx context.Context, actor *domain.User, id int64, reason string) (*domain.Ticket, error) {
	status := domain.TicketStatusCancelled
	ticket, err := s.UpdateTicket(ctx, actor, id, TicketPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_cancelled", nil, map[string]any{"reason": reason})
	return ticket, nil
}

// ReopenTicket returns a completed ticket to in-progress and counts the
// reopen. completedAt and slaStatus keep their historical values.
func (s *LifecycleService) ReopenTicket(ctx context.Context, actor *domain.User, id int64, reason string) (*domain.Ticket, error) {
	status := domain.TicketStatusInProgress
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusCompleted {
		return nil, apperrors.NewConflict("only completed tickets can be reopened", map[string]any{"status": ticket.Status})
	}
	ticket, err = s.UpdateTicket(ctx, actor, id, TicketPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_reopened", nil, map[string]any{"reason": reason})
	return ticket, nil
}

// RateTicket records the creator's satisfaction score on a completed ticket.
func (s *LifecycleService) RateTicket(ctx context.Context, actor *domain.User, id int64, rating int) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	ticket, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || ticket.UserID != actor.ID {
		return nil, apperrors.NewForbidden("only the ticket creator can rate it")
	}
	if ticket.Status != domain.TicketStatusCompleted {
		return nil, apperrors.NewConflict("only completed tickets can be rated", map[string]any{"status": ticket.Status})
	}
	ticket.CustomerSatisfaction = &rating
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapStorageErr("rate ticket", err)
	}
	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_rated", nil, map[string]any{"rating": rating})
	return ticket, nil
}

// BulkUpdate applies the patch to each ticket independently and keeps going
// past individual failures.
func (s *LifecycleService) BulkUpdate(ctx context.Context, actor *domain.User, ticketIDs []int64, patch TicketPatch) []BulkResult {
	results := make([]BulkResult, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		ticket, err := s.UpdateTicket(ctx, actor, id, patch)
		results = append(results, BulkResult{TicketID: id, Ticket: ticket, Err: err})
	}
	return results
}

// Stats returns grouped counts, either globally (managers) or for the
// caller's own tickets.
func (s *LifecycleService) Stats(ctx context.Context, actor *domain.User) (*repository.TicketStats, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	var scope *int64
	if !actor.CanManageTickets() {
		id := actor.ID
		scope = &id
	}
	stats, err := s.tickets.Stats(ctx, scope)
	if err != nil {
		return nil, apperrors.NewStorageError("ticket stats", err)
	}
	return stats, nil
}

// AuditTrail lists the compliance trail for a ticket.
func (s *LifecycleService) AuditTrail(ctx context.Context, actor *domain.User, ticketID int64, limit, offset int) ([]domain.AuditLogEntry, error) {
	if actor == nil || !actor.CanManageTickets() {
		return nil, apperrors.NewForbidden("audit trail requires admin or executive role")
	}
	entries, err := s.audit.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.NewStorageError("list audit trail", err)
	}
	return entries, nil
}

func (s *LifecycleService) applyProgress(ticket *domain.Ticket, progress int, pendingStatus *domain.TicketStatus) error {
	if progress < 0 || progress > 100 {
		return apperrors.NewValidationError("progress must be between 0 and 100", map[string]any{"progress": progress})
	}
	completing := pendingStatus != nil && *pendingStatus == domain.TicketStatusCompleted
	if progress == 100 && !completing && ticket.Status != domain.TicketStatusCompleted {
		return apperrors.NewValidationError("progress 100 requires completed status", nil)
	}
	if ticket.FirstResponseTime == nil && progress > 0 {
		minutes := int(s.now().Sub(ticket.CreatedAt).Minutes())
		ticket.FirstResponseTime = &minutes
	}
	ticket.Progress = progress
	return nil
}

func (s *LifecycleService) applyStatus(ticket *domain.Ticket, next domain.TicketStatus) error {
	if !isValidTransition(ticket.Status, next) {
		return apperrors.NewConflict("illegal status transition", map[string]any{
			"from": ticket.Status,
			"to":   next,
		})
	}
	reopening := ticket.Status == domain.TicketStatusCompleted
	switch next {
	case domain.TicketStatusCompleted:
		s.complete(ticket)
	default:
		ticket.Status = next
		if reopening {
			ticket.ReopenCount++
			if ticket.Progress == 100 {
				ticket.Progress = reopenedProgress
			}
		}
	}
	return nil
}

// complete stamps the completion fields. Progress is forced to 100 so the
// progress/status invariant holds.
func (s *LifecycleService) complete(ticket *domain.Ticket) {
	now := s.now()
	ticket.Status = domain.TicketStatusCompleted
	ticket.Progress = 100
	ticket.CompletedAt = &now
	minutes := int(now.Sub(ticket.CreatedAt).Minutes())
	ticket.ResolutionTime = &minutes
}

func (s *LifecycleService) publishStatusEvents(ctx context.Context, actor *domain.User, ticket *domain.Ticket, oldStatus domain.TicketStatus) {
	if ticket.Status == oldStatus {
		return
	}
	switch ticket.Status {
	case domain.TicketStatusCompleted:
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketResolved,
			TicketID: ticket.ID,
			Actor:    userActor(actor),
			Payload: events.TicketResolvedPayload{
				TicketNumber:      ticket.TicketNumber,
				CreatorID:         ticket.UserID,
				ResolutionMinutes: derefInt(ticket.ResolutionTime),
			},
		})
	case domain.TicketStatusCancelled:
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCancelled,
			TicketID: ticket.ID,
			Actor:    userActor(actor),
		})
	case domain.TicketStatusInProgress:
		if oldStatus == domain.TicketStatusCompleted {
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketReopened,
				TicketID: ticket.ID,
				Actor:    userActor(actor),
				Payload:  events.TicketReopenedPayload{ReopenCount: ticket.ReopenCount},
			})
		}
	}
}

func (s *LifecycleService) loadTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.NewStorageError("load ticket", err)
	}
	return ticket, nil
}

// recordAudit is best-effort: a failed audit write is logged, never rolled
// back into the primary operation.
func (s *LifecycleService) recordAudit(ctx context.Context, ticketID, actorID int64, action string, oldValue, newValue map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditLogEntry{
		TicketID: ticketID,
		ActorID:  &actorID,
		Action:   action,
		OldValue: oldValue,
		NewValue: newValue,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// canActOnTicket reports whether the actor may operate on the ticket as a
// handler: current handler, assignee, admin, or executive.
func canActOnTicket(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	if actor.CanManageTickets() {
		return true
	}
	if ticket.CurrentHandler != nil && *ticket.CurrentHandler == actor.ID {
		return true
	}
	if ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID {
		return true
	}
	return false
}

func userActor(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	id := user.ID
	return events.Actor{UserID: &id, Role: user.Role}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func mapStorageErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", nil)
	}
	return apperrors.NewStorageError(op, err)
}
