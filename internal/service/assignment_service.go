package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// ErrNoAssignee is returned when every candidate in the pool is at capacity
// or the pool is empty.
var ErrNoAssignee = errors.New("no available assignee")

// AssignStrategy names a candidate-selection policy.
type AssignStrategy string

const (
	StrategyLeastLoaded   AssignStrategy = "least_loaded"
	StrategyBestExpertise AssignStrategy = "best_expertise"
	StrategyRoundRobin    AssignStrategy = "round_robin"
)

// AssignmentService selects handlers for unclaimed tickets. The round-robin
// cursor lives in Redis and is advisory: losing it only restarts the rotation.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	audit      repository.AuditRepository
	redis      *redis.Client
	workflow   config.WorkflowConfig
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators for the selector.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	AuditRepo  repository.AuditRepository
	Redis      *redis.Client
	Workflow   config.WorkflowConfig
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Workflow.MaxActiveTickets <= 0 {
		deps.Workflow.MaxActiveTickets = 5
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		audit:      deps.AuditRepo,
		redis:      deps.Redis,
		workflow:   deps.Workflow,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// AutoAssign picks a handler for the ticket using the given strategy and
// applies the assignment. Pending tickets move to in-progress.
func (s *AssignmentService) AutoAssign(ctx context.Context, actor *domain.User, ticketID int64, strategy AssignStrategy) (*domain.Ticket, error) {
	if actor != nil && !actor.CanManageTickets() {
		return nil, apperrors.NewForbidden("auto-assignment requires admin or executive role")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStorageError("load ticket", err)
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewConflict("closed tickets cannot be assigned", map[string]any{"status": ticket.Status})
	}

	assignee, err := s.Select(ctx, strategy, ticket)
	if err != nil {
		if errors.Is(err, ErrNoAssignee) {
			return nil, apperrors.NewConflict("no available assignee in department", map[string]any{"department": ticket.Department})
		}
		return nil, err
	}

	oldAssignee := ticket.AssignedTo
	ticket.AssignedTo = &assignee.ID
	ticket.CurrentHandler = &assignee.ID
	if ticket.Status == domain.TicketStatusPending {
		ticket.Status = domain.TicketStatusInProgress
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapStorageErr("assign ticket", err)
	}

	s.recordAudit(ctx, ticket, actor, oldAssignee, assignee.ID, strategy)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    userActor(actor),
		Payload: events.TicketAssignedPayload{
			AssigneeID: assignee.ID,
			Strategy:   string(strategy),
		},
	})
	return ticket, nil
}

// Select runs the strategy over the ticket's department pool without touching
// the ticket. Returns ErrNoAssignee when nobody has spare capacity.
func (s *AssignmentService) Select(ctx context.Context, strategy AssignStrategy, ticket *domain.Ticket) (*domain.User, error) {
	pool, err := s.availableCandidates(ctx, ticket.Department)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoAssignee
	}

	switch strategy {
	case StrategyBestExpertise:
		return s.pickBestExpertise(ctx, pool, ticket.Category)
	case StrategyRoundRobin:
		return s.pickRoundRobin(ctx, pool, ticket.Department), nil
	case StrategyLeastLoaded, "":
		return pickLeastLoaded(pool), nil
	default:
		return nil, apperrors.NewValidationError("unknown assignment strategy", map[string]any{"strategy": strategy})
	}
}

// Workloads reports the candidate pool of a department with current counts,
// including candidates already at capacity.
func (s *AssignmentService) Workloads(ctx context.Context, actor *domain.User, department string) ([]domain.WorkloadSnapshot, error) {
	if actor == nil || !actor.CanManageTickets() {
		return nil, apperrors.NewForbidden("workload report requires admin or executive role")
	}
	candidates, err := s.listHandlers(ctx, department)
	if err != nil {
		return nil, err
	}
	snapshots := make([]domain.WorkloadSnapshot, 0, len(candidates))
	for _, candidate := range candidates {
		active, err := s.tickets.CountActiveByAssignee(ctx, candidate.ID)
		if err != nil {
			return nil, apperrors.NewStorageError("count active tickets", err)
		}
		urgent, err := s.tickets.CountActiveUrgentByAssignee(ctx, candidate.ID)
		if err != nil {
			return nil, apperrors.NewStorageError("count urgent tickets", err)
		}
		snapshots = append(snapshots, domain.WorkloadSnapshot{
			User:          candidate,
			ActiveTickets: active,
			UrgentTickets: urgent,
		})
	}
	return snapshots, nil
}

// availableCandidates lists department handlers below the active-ticket cap,
// in id order.
func (s *AssignmentService) availableCandidates(ctx context.Context, department string) ([]domain.WorkloadSnapshot, error) {
	candidates, err := s.listHandlers(ctx, department)
	if err != nil {
		return nil, err
	}
	available := make([]domain.WorkloadSnapshot, 0, len(candidates))
	for _, candidate := range candidates {
		active, err := s.tickets.CountActiveByAssignee(ctx, candidate.ID)
		if err != nil {
			return nil, apperrors.NewStorageError("count active tickets", err)
		}
		if active >= s.workflow.MaxActiveTickets {
			continue
		}
		available = append(available, domain.WorkloadSnapshot{User: candidate, ActiveTickets: active})
	}
	return available, nil
}

// listHandlers returns dosen and admin users of the department, merged in id
// order. Both List calls come back id-sorted, so a linear merge suffices.
func (s *AssignmentService) listHandlers(ctx context.Context, department string) ([]domain.User, error) {
	var merged []domain.User
	for _, role := range []domain.UserRole{domain.RoleDosen, domain.RoleAdmin} {
		r := role
		users, err := s.users.List(ctx, repository.UserFilter{Role: &r, Department: &department})
		if err != nil {
			return nil, apperrors.NewStorageError("list handlers", err)
		}
		merged = mergeByID(merged, users)
	}
	return merged, nil
}

func mergeByID(a, b []domain.User) []domain.User {
	out := make([]domain.User, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].ID <= b[j].ID {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// pickLeastLoaded takes the candidate with the fewest active tickets. Ties go
// to the lowest user id, which the pool ordering already guarantees.
func pickLeastLoaded(pool []domain.WorkloadSnapshot) *domain.User {
	best := 0
	for i := 1; i < len(pool); i++ {
		if pool[i].ActiveTickets < pool[best].ActiveTickets {
			best = i
		}
	}
	return &pool[best].User
}

// pickBestExpertise scores candidates on completed work in the category and
// average satisfaction. Ties break on workload, then user id.
func (s *AssignmentService) pickBestExpertise(ctx context.Context, pool []domain.WorkloadSnapshot, category string) (*domain.User, error) {
	best := -1
	var bestScore float64
	for i := range pool {
		completed, err := s.tickets.CountCompletedInCategory(ctx, pool[i].User.ID, category)
		if err != nil {
			return nil, apperrors.NewStorageError("count completed in category", err)
		}
		avg, err := s.tickets.AvgSatisfaction(ctx, pool[i].User.ID)
		if err != nil {
			return nil, apperrors.NewStorageError("average satisfaction", err)
		}
		pool[i].CompletedInCategory = completed
		pool[i].AvgSatisfaction = avg

		score := expertiseScore(completed, avg)
		if best < 0 || score > bestScore ||
			(score == bestScore && pool[i].ActiveTickets < pool[best].ActiveTickets) {
			best = i
			bestScore = score
		}
	}
	return &pool[best].User, nil
}

// expertiseScore is a base of 5 plus capped category experience, shifted by
// how far satisfaction sits from the neutral midpoint of 3.
func expertiseScore(completedInCategory int, avgSatisfaction float64) float64 {
	experience := completedInCategory
	if experience > 10 {
		experience = 10
	}
	return 5 + float64(experience) + (avgSatisfaction - 3)
}

// pickRoundRobin rotates over the pool with a per-department Redis counter.
// When Redis is unavailable the rotation restarts at the first candidate.
func (s *AssignmentService) pickRoundRobin(ctx context.Context, pool []domain.WorkloadSnapshot, department string) *domain.User {
	idx := 0
	if s.redis != nil {
		key := fmt.Sprintf("servicedesk:assign:rr:%s", department)
		n, err := s.redis.Incr(ctx, key).Result()
		if err != nil {
			s.logger.Warn("round-robin cursor unavailable", zap.String("department", department), zap.Error(err))
		} else {
			idx = int((n - 1) % int64(len(pool)))
		}
	}
	return &pool[idx].User
}

func (s *AssignmentService) recordAudit(ctx context.Context, ticket *domain.Ticket, actor *domain.User, oldAssignee *int64, newAssignee int64, strategy AssignStrategy) {
	if s.audit == nil {
		return
	}
	var actorID *int64
	if actor != nil {
		actorID = &actor.ID
	}
	entry := &domain.AuditLogEntry{
		TicketID: ticket.ID,
		ActorID:  actorID,
		Action:   "ticket_auto_assigned",
		OldValue: map[string]any{"assigned_to": oldAssignee},
		NewValue: map[string]any{"assigned_to": newAssignee, "strategy": strategy},
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("action", "ticket_auto_assigned"),
			zap.Error(err))
	}
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
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
