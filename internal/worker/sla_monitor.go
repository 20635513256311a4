package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
)

const sweepLockKey = "servicedesk:sla:sweep-lock"

// SLAMonitor periodically sweeps open tickets against their deadlines and
// moves sla_status forward. Status only ever advances: on-time to at-risk to
// breached, with a direct jump to breached when a sweep arrives late.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	redis      *redis.Client
	dispatcher events.Dispatcher
	workflow   config.WorkflowConfig
	logger     *zap.Logger
	now        func() time.Time
}

// SLAMonitorDependencies bundles collaborators for the sweep loop.
type SLAMonitorDependencies struct {
	TicketRepo repository.TicketRepository
	Redis      *redis.Client
	Dispatcher events.Dispatcher
	Workflow   config.WorkflowConfig
	Logger     *zap.Logger
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(deps SLAMonitorDependencies) *SLAMonitor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Workflow.SweepInterval <= 0 {
		deps.Workflow.SweepInterval = 2 * time.Minute
	}
	if deps.Workflow.SLAWarningThreshold <= 0 || deps.Workflow.SLAWarningThreshold >= 1 {
		deps.Workflow.SLAWarningThreshold = 0.8
	}
	return &SLAMonitor{
		tickets:    deps.TicketRepo,
		redis:      deps.Redis,
		dispatcher: deps.Dispatcher,
		workflow:   deps.Workflow,
		logger:     logger,
		now:        time.Now,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.workflow.SweepInterval)
	defer ticker.Stop()

	m.logger.Info("sla monitor started",
		zap.Duration("interval", m.workflow.SweepInterval),
		zap.Float64("warning_threshold", m.workflow.SLAWarningThreshold))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Error("sla sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep examines every open ticket once. The Redis lock keeps replicas from
// sweeping concurrently but is advisory: the compare-and-swap on sla_status
// makes overlapping sweeps harmless, just wasteful.
func (m *SLAMonitor) Sweep(ctx context.Context) error {
	if !m.acquireLock(ctx) {
		m.logger.Debug("sla sweep skipped, another replica holds the lock")
		return nil
	}

	tickets, err := m.tickets.ListOpen(ctx)
	if err != nil {
		return err
	}

	now := m.now()
	var flagged, breached int
	for i := range tickets {
		ticket := &tickets[i]
		if ticket.SLADeadline == nil {
			continue
		}
		switch m.classify(ticket, now) {
		case domain.SLAStatusBreached:
			if m.advance(ctx, ticket, domain.SLAStatusBreached) {
				breached++
			}
		case domain.SLAStatusAtRisk:
			if m.advance(ctx, ticket, domain.SLAStatusAtRisk) {
				flagged++
			}
		}
	}

	if flagged > 0 || breached > 0 {
		m.logger.Info("sla sweep finished",
			zap.Int("open_tickets", len(tickets)),
			zap.Int("at_risk", flagged),
			zap.Int("breached", breached))
	}
	return nil
}

// classify computes the target status from elapsed time only. It never moves
// a ticket backwards.
func (m *SLAMonitor) classify(ticket *domain.Ticket, now time.Time) domain.SLAStatus {
	deadline := *ticket.SLADeadline
	if !now.Before(deadline) {
		return domain.SLAStatusBreached
	}
	total := deadline.Sub(ticket.CreatedAt)
	if total <= 0 {
		return domain.SLAStatusBreached
	}
	elapsed := now.Sub(ticket.CreatedAt)
	if float64(elapsed)/float64(total) >= m.workflow.SLAWarningThreshold {
		return domain.SLAStatusAtRisk
	}
	return domain.SLAStatusOnTime
}

// advance claims the transition with a compare-and-swap and emits the event
// only on the winning claim, so each ticket is notified at most once per
// status step.
func (m *SLAMonitor) advance(ctx context.Context, ticket *domain.Ticket, target domain.SLAStatus) bool {
	from := ticket.SLAStatus
	if from == target || from == domain.SLAStatusBreached {
		return false
	}
	claimed, err := m.tickets.ClaimSLAStatus(ctx, ticket.ID, from, target)
	if err != nil {
		m.logger.Warn("sla status claim failed",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("target", string(target)),
			zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}
	ticket.SLAStatus = target

	eventType := events.EventSLAAtRisk
	if target == domain.SLAStatusBreached {
		eventType = events.EventSLABreached
	}
	m.publish(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Payload: events.SLAStatusPayload{
			TicketNumber: ticket.TicketNumber,
			SLAStatus:    target,
			AssigneeID:   ticket.AssignedTo,
			Deadline:     *ticket.SLADeadline,
		},
	})
	return true
}

// acquireLock takes the sweep lock with SETNX and a TTL shorter than the
// sweep interval. Failure to reach Redis does not block the sweep.
func (m *SLAMonitor) acquireLock(ctx context.Context) bool {
	if m.redis == nil {
		return true
	}
	ttl := m.workflow.SweepLockTTL
	if ttl <= 0 {
		ttl = m.workflow.SweepInterval - 10*time.Second
		if ttl <= 0 {
			ttl = m.workflow.SweepInterval
		}
	}
	ok, err := m.redis.SetNX(ctx, sweepLockKey, m.now().Unix(), ttl).Result()
	if err != nil {
		m.logger.Warn("sweep lock unavailable, sweeping anyway", zap.Error(err))
		return true
	}
	return ok
}

func (m *SLAMonitor) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = m.now()
	_ = m.dispatcher.Publish(ctx, event)
}
