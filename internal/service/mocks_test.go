package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
)

// MockTicketRepository implements repository.TicketRepository with per-method
// overrides.
type MockTicketRepository struct {
	CreateFunc                      func(ctx context.Context, ticket *domain.Ticket) error
	UpdateFunc                      func(ctx context.Context, ticket *domain.Ticket) error
	GetByIDFunc                     func(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumberFunc                 func(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilterFunc              func(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error)
	ListOpenFunc                    func(ctx context.Context) ([]domain.Ticket, error)
	CountActiveByAssigneeFunc       func(ctx context.Context, userID int64) (int, error)
	CountActiveUrgentByAssigneeFunc func(ctx context.Context, userID int64) (int, error)
	CountCompletedInCategoryFunc    func(ctx context.Context, userID int64, category string) (int, error)
	AvgSatisfactionFunc             func(ctx context.Context, userID int64) (float64, error)
	ClaimSLAStatusFunc              func(ctx context.Context, ticketID int64, from, to domain.SLAStatus) (bool, error)
	StatsFunc                       func(ctx context.Context, userID *int64) (*repository.TicketStats, error)
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ticket)
	}
	ticket.ID = 1
	ticket.TicketNumber = "TIK-000001"
	return nil
}

func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ticket)
	}
	return nil
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *MockTicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	if m.GetByNumberFunc != nil {
		return m.GetByNumberFunc(ctx, number)
	}
	return nil, pgx.ErrNoRows
}

func (m *MockTicketRepository) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	if m.ListWithFilterFunc != nil {
		return m.ListWithFilterFunc(ctx, filter)
	}
	return nil, 0, nil
}

func (m *MockTicketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	if m.ListOpenFunc != nil {
		return m.ListOpenFunc(ctx)
	}
	return nil, nil
}

func (m *MockTicketRepository) CountActiveByAssignee(ctx context.Context, userID int64) (int, error) {
	if m.CountActiveByAssigneeFunc != nil {
		return m.CountActiveByAssigneeFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockTicketRepository) CountActiveUrgentByAssignee(ctx context.Context, userID int64) (int, error) {
	if m.CountActiveUrgentByAssigneeFunc != nil {
		return m.CountActiveUrgentByAssigneeFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockTicketRepository) CountCompletedInCategory(ctx context.Context, userID int64, category string) (int, error) {
	if m.CountCompletedInCategoryFunc != nil {
		return m.CountCompletedInCategoryFunc(ctx, userID, category)
	}
	return 0, nil
}

func (m *MockTicketRepository) AvgSatisfaction(ctx context.Context, userID int64) (float64, error) {
	if m.AvgSatisfactionFunc != nil {
		return m.AvgSatisfactionFunc(ctx, userID)
	}
	return 3, nil
}

func (m *MockTicketRepository) ClaimSLAStatus(ctx context.Context, ticketID int64, from, to domain.SLAStatus) (bool, error) {
	if m.ClaimSLAStatusFunc != nil {
		return m.ClaimSLAStatusFunc(ctx, ticketID, from, to)
	}
	return true, nil
}

func (m *MockTicketRepository) Stats(ctx context.Context, userID *int64) (*repository.TicketStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, userID)
	}
	return &repository.TicketStats{}, nil
}

// MockUserRepository implements repository.UserRepository.
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id int64) (*domain.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	ListFunc       func(ctx context.Context, filter repository.UserFilter) ([]domain.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &domain.User{ID: id, Role: domain.RoleDosen}, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, pgx.ErrNoRows
}

func (m *MockUserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

// MockAuditRepository records entries in memory.
type MockAuditRepository struct {
	CreateFunc func(ctx context.Context, entry *domain.AuditLogEntry) error
	Entries    []domain.AuditLogEntry
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockAuditRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLogEntry, error) {
	var result []domain.AuditLogEntry
	for _, entry := range m.Entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// MockDispositionRepository records chain entries in memory and applies the
// ticket state the way the transactional implementation would.
type MockDispositionRepository struct {
	AppendAndApplyFunc func(ctx context.Context, event *domain.DispositionEvent, ticket *domain.Ticket) error
	Events             []domain.DispositionEvent
}

func (m *MockDispositionRepository) AppendAndApply(ctx context.Context, event *domain.DispositionEvent, ticket *domain.Ticket) error {
	if m.AppendAndApplyFunc != nil {
		return m.AppendAndApplyFunc(ctx, event, ticket)
	}
	event.ID = int64(len(m.Events) + 1)
	m.Events = append(m.Events, *event)
	return nil
}

func (m *MockDispositionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.DispositionEvent, error) {
	var result []domain.DispositionEvent
	for _, event := range m.Events {
		if event.TicketID == ticketID {
			result = append(result, event)
		}
	}
	return result, nil
}

// MockNotificationRepository records notifications in memory.
type MockNotificationRepository struct {
	CreateFunc    func(ctx context.Context, notification *domain.Notification) error
	Notifications []domain.Notification
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, notification)
	}
	notification.ID = int64(len(m.Notifications) + 1)
	m.Notifications = append(m.Notifications, *notification)
	return nil
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	var result []domain.Notification
	for _, notification := range m.Notifications {
		if notification.UserID == userID {
			result = append(result, notification)
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, notificationID, userID int64) error {
	return nil
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	return nil
}

// capturingDispatcher collects published events for assertions.
type capturingDispatcher struct {
	published []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) typesSeen() []events.EventType {
	out := make([]events.EventType, 0, len(d.published))
	for _, event := range d.published {
		out = append(out, event.Type)
	}
	return out
}
