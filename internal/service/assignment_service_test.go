package service

import (
	"context"
	"testing"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

func deptUsers(role domain.UserRole, ids ...int64) []domain.User {
	dept := "IT"
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.User{ID: id, Role: role, Department: &dept})
	}
	return out
}

func usersByRole(dosenIDs, adminIDs []int64) *MockUserRepository {
	return &MockUserRepository{
		ListFunc: func(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
			if filter.Role == nil {
				return nil, nil
			}
			switch *filter.Role {
			case domain.RoleDosen:
				return deptUsers(domain.RoleDosen, dosenIDs...), nil
			case domain.RoleAdmin:
				return deptUsers(domain.RoleAdmin, adminIDs...), nil
			}
			return nil, nil
		},
	}
}

func activeCounts(counts map[int64]int) func(context.Context, int64) (int, error) {
	return func(_ context.Context, userID int64) (int, error) {
		return counts[userID], nil
	}
}

func newAssignmentForTest(tickets *MockTicketRepository, users *MockUserRepository) (*AssignmentService, *capturingDispatcher) {
	dispatcher := &capturingDispatcher{}
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo: tickets,
		UserRepo:   users,
		AuditRepo:  &MockAuditRepository{},
		Workflow:   config.WorkflowConfig{MaxActiveTickets: 5},
		Dispatcher: dispatcher,
	})
	return svc, dispatcher
}

func TestLeastLoadedTieBreaksOnLowestID(t *testing.T) {
	// Workloads 3,1,4,1: the two candidates at 1 tie, lowest id wins.
	repo := &MockTicketRepository{
		CountActiveByAssigneeFunc: activeCounts(map[int64]int{11: 3, 12: 1, 13: 4, 14: 1}),
	}
	svc, _ := newAssignmentForTest(repo, usersByRole([]int64{11, 12, 13, 14}, nil))

	ticket := ticketFixture(domain.TicketStatusPending)
	selected, err := svc.Select(context.Background(), StrategyLeastLoaded, ticket)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected.ID != 12 {
		t.Errorf("selected = %d, want 12", selected.ID)
	}
}

func TestCapacityCapExcludesAtExactlyFive(t *testing.T) {
	repo := &MockTicketRepository{
		CountActiveByAssigneeFunc: activeCounts(map[int64]int{11: 5, 12: 5}),
	}
	svc, _ := newAssignmentForTest(repo, usersByRole([]int64{11, 12}, nil))

	ticket := ticketFixture(domain.TicketStatusPending)
	if _, err := svc.Select(context.Background(), StrategyLeastLoaded, ticket); err != ErrNoAssignee {
		t.Errorf("error = %v, want ErrNoAssignee", err)
	}

	// One slot below the cap is still eligible.
	repo.CountActiveByAssigneeFunc = activeCounts(map[int64]int{11: 5, 12: 4})
	selected, err := svc.Select(context.Background(), StrategyLeastLoaded, ticket)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected.ID != 12 {
		t.Errorf("selected = %d, want 12", selected.ID)
	}
}

func TestEmptyPoolConflictsOnAutoAssign(t *testing.T) {
	ticket := ticketFixture(domain.TicketStatusPending)
	repo := repoWithTicket(ticket)
	svc, _ := newAssignmentForTest(repo, usersByRole(nil, nil))

	_, err := svc.AutoAssign(context.Background(), admin(1), ticket.ID, StrategyLeastLoaded)
	if !apperrors.IsCode(err, "CONFLICT") {
		t.Errorf("error = %v, want CONFLICT", err)
	}
}

func TestBestExpertiseScoring(t *testing.T) {
	// 11 has deep category history, 12 has none. Satisfaction below the
	// midpoint drags the score down.
	repo := &MockTicketRepository{
		CountActiveByAssigneeFunc: activeCounts(map[int64]int{11: 2, 12: 2}),
		CountCompletedInCategoryFunc: func(_ context.Context, userID int64, _ string) (int, error) {
			if userID == 11 {
				return 14, nil
			}
			return 0, nil
		},
		AvgSatisfactionFunc: func(_ context.Context, userID int64) (float64, error) {
			if userID == 11 {
				return 4.5, nil
			}
			return 3, nil
		},
	}
	svc, _ := newAssignmentForTest(repo, usersByRole([]int64{11, 12}, nil))

	ticket := ticketFixture(domain.TicketStatusPending)
	selected, err := svc.Select(context.Background(), StrategyBestExpertise, ticket)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected.ID != 11 {
		t.Errorf("selected = %d, want 11", selected.ID)
	}
}

func TestExpertiseScoreCapsExperience(t *testing.T) {
	// Experience contribution caps at 10 completed tickets.
	if got := expertiseScore(14, 3); got != 15 {
		t.Errorf("expertiseScore(14, 3) = %v, want 15", got)
	}
	if got := expertiseScore(10, 3); got != 15 {
		t.Errorf("expertiseScore(10, 3) = %v, want 15", got)
	}
	if got := expertiseScore(0, 5); got != 7 {
		t.Errorf("expertiseScore(0, 5) = %v, want 7", got)
	}
	if got := expertiseScore(2, 2); got != 6 {
		t.Errorf("expertiseScore(2, 2) = %v, want 6", got)
	}
}

func TestBestExpertiseTieBreaksOnWorkload(t *testing.T) {
	repo := &MockTicketRepository{
		CountActiveByAssigneeFunc: activeCounts(map[int64]int{11: 3, 12: 1}),
	}
	svc, _ := newAssignmentForTest(repo, usersByRole([]int64{11, 12}, nil))

	ticket := ticketFixture(domain.TicketStatusPending)
	selected, err := svc.Select(context.Background(), StrategyBestExpertise, ticket)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected.ID != 12 {
		t.Errorf("selected = %d, want 12 on equal score with lighter load", selected.ID)
	}
}

func TestAutoAssignMovesPendingToInProgress(t *testing.T) {
	ticket := ticketFixture(domain.TicketStatusPending)
	ticket.AssignedTo = nil
	ticket.CurrentHandler = nil
	repo := repoWithTicket(ticket)
	repo.CountActiveByAssigneeFunc = activeCounts(map[int64]int{11: 0})
	svc, dispatcher := newAssignmentForTest(repo, usersByRole([]int64{11}, nil))

	updated, err := svc.AutoAssign(context.Background(), admin(1), ticket.ID, StrategyLeastLoaded)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if updated.Status != domain.TicketStatusInProgress {
		t.Errorf("status = %s, want in-progress", updated.Status)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != 11 {
		t.Errorf("assigned to = %v, want 11", updated.AssignedTo)
	}
	if updated.CurrentHandler == nil || *updated.CurrentHandler != 11 {
		t.Errorf("current handler = %v, want 11", updated.CurrentHandler)
	}
	if got := dispatcher.typesSeen(); len(got) != 1 || got[0] != events.EventTicketAssigned {
		t.Errorf("events = %v, want [ticket_assigned]", got)
	}
}

func TestAutoAssignRequiresManager(t *testing.T) {
	ticket := ticketFixture(domain.TicketStatusPending)
	svc, _ := newAssignmentForTest(repoWithTicket(ticket), usersByRole([]int64{11}, nil))

	_, err := svc.AutoAssign(context.Background(), dosen(2), ticket.ID, StrategyLeastLoaded)
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("error = %v, want FORBIDDEN", err)
	}
}

func TestRoundRobinWithoutRedisFallsBackToFirst(t *testing.T) {
	repo := &MockTicketRepository{
		CountActiveByAssigneeFunc: activeCounts(map[int64]int{11: 1, 12: 1}),
	}
	svc, _ := newAssignmentForTest(repo, usersByRole([]int64{11, 12}, nil))

	ticket := ticketFixture(domain.TicketStatusPending)
	selected, err := svc.Select(context.Background(), StrategyRoundRobin, ticket)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected.ID != 11 {
		t.Errorf("selected = %d, want deterministic first candidate", selected.ID)
	}
}

func TestUnknownStrategyRejected(t *testing.T) {
	repo := &MockTicketRepository{
		CountActiveByAssigneeFunc: activeCounts(map[int64]int{11: 0}),
	}
	svc, _ := newAssignmentForTest(repo, usersByRole([]int64{11}, nil))

	ticket := ticketFixture(domain.TicketStatusPending)
	if _, err := svc.Select(context.Background(), AssignStrategy("lottery"), ticket); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Errorf("error = %v, want VALIDATION_FAILED", err)
	}
}
