package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
	"github.com/campusdesk/servicedesk/internal/sla"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// DispositionService manages the append-only forwarding chain and the ticket
// state each hop produces.
type DispositionService struct {
	tickets      repository.TicketRepository
	dispositions repository.DispositionRepository
	users        repository.UserRepository
	audit        repository.AuditRepository
	policy       *sla.Policy
	workflow     config.WorkflowConfig
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
}

// DispositionDependencies bundles collaborators for the chain manager.
type DispositionDependencies struct {
	TicketRepo      repository.TicketRepository
	DispositionRepo repository.DispositionRepository
	UserRepo        repository.UserRepository
	AuditRepo       repository.AuditRepository
	Policy          *sla.Policy
	Workflow        config.WorkflowConfig
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// NewDispositionService constructs the service.
func NewDispositionService(deps DispositionDependencies) *DispositionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Workflow.MaxActiveTickets <= 0 {
		deps.Workflow.MaxActiveTickets = 5
	}
	return &DispositionService{
		tickets:      deps.TicketRepo,
		dispositions: deps.DispositionRepo,
		users:        deps.UserRepo,
		audit:        deps.AuditRepo,
		policy:       deps.Policy,
		workflow:     deps.Workflow,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		now:          time.Now,
	}
}

// ForwardInput describes one forwarding hop.
type ForwardInput struct {
	ToUserID       int64
	Reason         string
	Notes          string
	ProgressUpdate *int
	ActionType     domain.DispositionAction
}

// Forward appends a hop to the ticket's chain and moves handling to the
// target user. The chain entry and the ticket update are committed together.
func (s *DispositionService) Forward(ctx context.Context, actor *domain.User, ticketID int64, input ForwardInput) (*domain.DispositionEvent, *domain.Ticket, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, nil, apperrors.NewValidationError("forwarding reason is required", nil)
	}
	action := input.ActionType
	if action == "" {
		action = domain.DispositionForward
	}
	if !domain.ValidDispositionAction(action) {
		return nil, nil, apperrors.NewValidationError("invalid action type", map[string]any{"action_type": action})
	}
	if input.ProgressUpdate != nil && (*input.ProgressUpdate < 0 || *input.ProgressUpdate > 99) {
		return nil, nil, apperrors.NewValidationError("progress update must be between 0 and 99", map[string]any{"progress": *input.ProgressUpdate})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !ticket.IsOpen() {
		return nil, nil, apperrors.NewConflict("closed tickets cannot be forwarded", map[string]any{"status": ticket.Status})
	}
	if !canActOnTicket(actor, ticket) {
		return nil, nil, apperrors.NewForbidden("only the current handler, assignee, or an admin can forward")
	}

	target, err := s.users.GetByID(ctx, input.ToUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("user", map[string]any{"user_id": input.ToUserID})
		}
		return nil, nil, apperrors.NewStorageError("load forward target", err)
	}

	impact, err := s.resolveImpact(ctx, action, target.ID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	expected := s.expectedCompletion(ticket, now)
	event := &domain.DispositionEvent{
		TicketID:               ticket.ID,
		FromUserID:             &actor.ID,
		ToUserID:               target.ID,
		Reason:                 strings.TrimSpace(input.Reason),
		Notes:                  input.Notes,
		ProgressUpdate:         input.ProgressUpdate,
		ActionType:             action,
		ExpectedCompletionTime: &expected,
		SLAImpact:              impact,
	}

	oldHandler := ticket.CurrentHandler
	ticket.Status = domain.TicketStatusDisposisi
	ticket.CurrentHandler = &target.ID
	ticket.AssignedTo = &target.ID
	if action == domain.DispositionEscalate {
		ticket.EscalationLevel++
	}
	if input.ProgressUpdate != nil {
		ticket.Progress = *input.ProgressUpdate
		if ticket.FirstResponseTime == nil && *input.ProgressUpdate > 0 {
			minutes := int(now.Sub(ticket.CreatedAt).Minutes())
			ticket.FirstResponseTime = &minutes
		}
	}

	if err := s.dispositions.AppendAndApply(ctx, event, ticket); err != nil {
		return nil, nil, mapStorageErr("append disposition", err)
	}

	s.recordAudit(ctx, ticket.ID, actor.ID, "ticket_forwarded",
		map[string]any{"current_handler": oldHandler},
		map[string]any{
			"current_handler": target.ID,
			"action_type":     action,
			"sla_impact":      impact,
			"reason":          event.Reason,
		})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketForwarded,
		TicketID: ticket.ID,
		Actor:    userActor(actor),
		Payload: events.TicketForwardedPayload{
			TicketNumber: ticket.TicketNumber,
			FromUserID:   event.FromUserID,
			ToUserID:     target.ID,
			ActionType:   action,
			SLAImpact:    impact,
			Reason:       event.Reason,
		},
	})
	return event, ticket, nil
}

// Chain returns the ticket's forwarding history in insertion order.
func (s *DispositionService) Chain(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.DispositionEvent, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canActOnTicket(actor, ticket) && ticket.UserID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	chain, err := s.dispositions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError("list disposition chain", err)
	}
	return chain, nil
}

// resolveImpact classifies how the hop affects the deadline. Escalations are
// expected to improve resolution time; forwarding onto an overloaded target
// extends it.
func (s *DispositionService) resolveImpact(ctx context.Context, action domain.DispositionAction, targetID int64) (domain.SLAImpact, error) {
	if action == domain.DispositionEscalate {
		return domain.SLAImpactImproved, nil
	}
	active, err := s.tickets.CountActiveByAssignee(ctx, targetID)
	if err != nil {
		return "", apperrors.NewStorageError("count target workload", err)
	}
	if active > s.workflow.MaxActiveTickets {
		return domain.SLAImpactExtended, nil
	}
	return domain.SLAImpactMaintained, nil
}

// expectedCompletion takes the ticket's own deadline when present, otherwise
// derives one from the policy table.
func (s *DispositionService) expectedCompletion(ticket *domain.Ticket, now time.Time) time.Time {
	if ticket.SLADeadline != nil {
		return *ticket.SLADeadline
	}
	return s.policy.Deadline(now, ticket.Priority, ticket.Category)
}

func (s *DispositionService) loadTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.NewStorageError("load ticket", err)
	}
	return ticket, nil
}

func (s *DispositionService) recordAudit(ctx context.Context, ticketID, actorID int64, action string, oldValue, newValue map[string]any) {
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

func (s *DispositionService) publishEvent(ctx context.Context, event events.Event) {
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
