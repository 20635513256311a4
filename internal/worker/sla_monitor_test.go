package worker

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
)

// sweepTicketRepo is an in-memory repository.TicketRepository covering the
// methods the monitor touches.
type sweepTicketRepo struct {
	tickets []domain.Ticket
	claims  []string
	// claimResult lets a test simulate another sweeper winning the CAS.
	claimResult func(ticketID int64, from, to domain.SLAStatus) bool
}

func (r *sweepTicketRepo) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, len(r.tickets))
	copy(out, r.tickets)
	return out, nil
}

func (r *sweepTicketRepo) ClaimSLAStatus(_ context.Context, ticketID int64, from, to domain.SLAStatus) (bool, error) {
	r.claims = append(r.claims, string(from)+">"+string(to))
	if r.claimResult != nil && !r.claimResult(ticketID, from, to) {
		return false, nil
	}
	for i := range r.tickets {
		if r.tickets[i].ID == ticketID && r.tickets[i].SLAStatus == from {
			r.tickets[i].SLAStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (r *sweepTicketRepo) Create(context.Context, *domain.Ticket) error { return nil }
func (r *sweepTicketRepo) Update(context.Context, *domain.Ticket) error { return nil }
func (r *sweepTicketRepo) GetByID(context.Context, int64) (*domain.Ticket, error) {
	return nil, pgx.ErrNoRows
}
func (r *sweepTicketRepo) GetByNumber(context.Context, string) (*domain.Ticket, error) {
	return nil, pgx.ErrNoRows
}
func (r *sweepTicketRepo) ListWithFilter(context.Context, repository.TicketFilter) ([]domain.Ticket, int, error) {
	return nil, 0, nil
}
func (r *sweepTicketRepo) CountActiveByAssignee(context.Context, int64) (int, error) { return 0, nil }
func (r *sweepTicketRepo) CountActiveUrgentByAssignee(context.Context, int64) (int, error) {
	return 0, nil
}
func (r *sweepTicketRepo) CountCompletedInCategory(context.Context, int64, string) (int, error) {
	return 0, nil
}
func (r *sweepTicketRepo) AvgSatisfaction(context.Context, int64) (float64, error) { return 3, nil }
func (r *sweepTicketRepo) Stats(context.Context, *int64) (*repository.TicketStats, error) {
	return &repository.TicketStats{}, nil
}

type capturingDispatcher struct {
	published []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func openTicket(id int64, createdAgo, deadlineIn time.Duration, status domain.SLAStatus) domain.Ticket {
	deadline := sweepNow.Add(deadlineIn)
	assignee := int64(2)
	return domain.Ticket{
		ID:           id,
		TicketNumber: "TIK-000001",
		Status:       domain.TicketStatusInProgress,
		CreatedAt:    sweepNow.Add(-createdAgo),
		SLADeadline:  &deadline,
		SLAStatus:    status,
		AssignedTo:   &assignee,
	}
}

func newMonitorForTest(repo *sweepTicketRepo) (*SLAMonitor, *capturingDispatcher) {
	dispatcher := &capturingDispatcher{}
	monitor := NewSLAMonitor(SLAMonitorDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
		Workflow: config.WorkflowConfig{
			SLAWarningThreshold: 0.8,
			SweepInterval:       time.Minute,
		},
	})
	monitor.now = func() time.Time { return sweepNow }
	return monitor, dispatcher
}

func TestSweepFlagsAtRiskAtThreshold(t *testing.T) {
	// 8h elapsed of a 10h budget is exactly the 0.8 threshold.
	repo := &sweepTicketRepo{tickets: []domain.Ticket{
		openTicket(1, 8*time.Hour, 2*time.Hour, domain.SLAStatusOnTime),
	}}
	monitor, dispatcher := newMonitorForTest(repo)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if repo.tickets[0].SLAStatus != domain.SLAStatusAtRisk {
		t.Errorf("sla status = %s, want at-risk", repo.tickets[0].SLAStatus)
	}
	if len(dispatcher.published) != 1 || dispatcher.published[0].Type != events.EventSLAAtRisk {
		t.Fatalf("events = %+v, want one sla_at_risk", dispatcher.published)
	}
	payload := dispatcher.published[0].Payload.(events.SLAStatusPayload)
	if payload.AssigneeID == nil || *payload.AssigneeID != 2 {
		t.Errorf("payload assignee = %v, want 2", payload.AssigneeID)
	}
}

func TestSweepLeavesHealthyTicketsAlone(t *testing.T) {
	// 5h of a 10h budget is half way, well under the threshold.
	repo := &sweepTicketRepo{tickets: []domain.Ticket{
		openTicket(1, 5*time.Hour, 5*time.Hour, domain.SLAStatusOnTime),
	}}
	monitor, dispatcher := newMonitorForTest(repo)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if repo.tickets[0].SLAStatus != domain.SLAStatusOnTime {
		t.Errorf("sla status = %s, want on-time", repo.tickets[0].SLAStatus)
	}
	if len(dispatcher.published) != 0 {
		t.Errorf("events = %+v, want none", dispatcher.published)
	}
}

func TestSweepBreaches(t *testing.T) {
	t.Run("from at-risk", func(t *testing.T) {
		repo := &sweepTicketRepo{tickets: []domain.Ticket{
			openTicket(1, 11*time.Hour, -time.Hour, domain.SLAStatusAtRisk),
		}}
		monitor, dispatcher := newMonitorForTest(repo)

		if err := monitor.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if repo.tickets[0].SLAStatus != domain.SLAStatusBreached {
			t.Errorf("sla status = %s, want breached", repo.tickets[0].SLAStatus)
		}
		if len(dispatcher.published) != 1 || dispatcher.published[0].Type != events.EventSLABreached {
			t.Fatalf("events = %+v, want one sla_breached", dispatcher.published)
		}
	})

	t.Run("straight from on-time when a sweep arrives late", func(t *testing.T) {
		repo := &sweepTicketRepo{tickets: []domain.Ticket{
			openTicket(1, 11*time.Hour, -time.Hour, domain.SLAStatusOnTime),
		}}
		monitor, dispatcher := newMonitorForTest(repo)

		if err := monitor.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if repo.tickets[0].SLAStatus != domain.SLAStatusBreached {
			t.Errorf("sla status = %s, want breached", repo.tickets[0].SLAStatus)
		}
		if len(dispatcher.published) != 1 || dispatcher.published[0].Type != events.EventSLABreached {
			t.Fatalf("events = %+v, want one sla_breached", dispatcher.published)
		}
	})
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := &sweepTicketRepo{tickets: []domain.Ticket{
		openTicket(1, 11*time.Hour, -time.Hour, domain.SLAStatusOnTime),
	}}
	monitor, dispatcher := newMonitorForTest(repo)

	for i := 0; i < 3; i++ {
		if err := monitor.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep %d: %v", i, err)
		}
	}
	if len(dispatcher.published) != 1 {
		t.Errorf("events = %d, want exactly 1 across repeated sweeps", len(dispatcher.published))
	}
}

func TestSweepNeverMovesStatusBackwards(t *testing.T) {
	// A breached ticket whose deadline math would now classify as at-risk
	// still stays breached.
	repo := &sweepTicketRepo{tickets: []domain.Ticket{
		openTicket(1, 9*time.Hour, time.Hour, domain.SLAStatusBreached),
	}}
	monitor, dispatcher := newMonitorForTest(repo)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if repo.tickets[0].SLAStatus != domain.SLAStatusBreached {
		t.Errorf("sla status = %s, want still breached", repo.tickets[0].SLAStatus)
	}
	if len(dispatcher.published) != 0 {
		t.Errorf("events = %+v, want none", dispatcher.published)
	}
	if len(repo.claims) != 0 {
		t.Errorf("claims = %v, want none for already-breached ticket", repo.claims)
	}
}

func TestSweepLostClaimEmitsNothing(t *testing.T) {
	repo := &sweepTicketRepo{
		tickets: []domain.Ticket{
			openTicket(1, 11*time.Hour, -time.Hour, domain.SLAStatusOnTime),
		},
		claimResult: func(int64, domain.SLAStatus, domain.SLAStatus) bool { return false },
	}
	monitor, dispatcher := newMonitorForTest(repo)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(dispatcher.published) != 0 {
		t.Errorf("events = %+v, want none when another sweeper won the claim", dispatcher.published)
	}
}
