package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/repository"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// NotificationService turns workflow events into persisted per-user messages.
// Delivery is best-effort: a failed write is logged and the workflow moves on.
type NotificationService struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notifications: notifications, logger: logger}
}

// Register subscribes the service to every event it translates.
func (s *NotificationService) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, s.onTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, s.onTicketAssigned)
	dispatcher.Subscribe(events.EventTicketForwarded, s.onTicketForwarded)
	dispatcher.Subscribe(events.EventTicketReassigned, s.onTicketReassigned)
	dispatcher.Subscribe(events.EventTicketResolved, s.onTicketResolved)
	dispatcher.Subscribe(events.EventSLAAtRisk, s.onSLAStatus)
	dispatcher.Subscribe(events.EventSLABreached, s.onSLAStatus)
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	result, err := s.notifications.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.NewStorageError("list notifications", err)
	}
	return result, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	if err := s.notifications.MarkRead(ctx, notificationID, userID); err != nil {
		return mapStorageErr("mark notification read", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return apperrors.NewStorageError("mark notifications read", err)
	}
	return nil
}

func (s *NotificationService) onTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.CreatorID, domain.NotifyTicketCreated, event.TicketID,
		fmt.Sprintf("Ticket %s created", payload.TicketNumber),
		fmt.Sprintf("Your ticket %q was received and queued for %s.", payload.Subject, payload.Department))
	return nil
}

func (s *NotificationService) onTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.AssigneeID, domain.NotifyTicketAssigned, event.TicketID,
		"Ticket assigned to you",
		"A ticket was assigned to you and is waiting for handling.")
	return nil
}

func (s *NotificationService) onTicketForwarded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketForwardedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.ToUserID, domain.NotifyTicketDisposisi, event.TicketID,
		fmt.Sprintf("Ticket %s forwarded to you", payload.TicketNumber),
		fmt.Sprintf("Reason: %s", payload.Reason))
	return nil
}

func (s *NotificationService) onTicketReassigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReassignedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.NewAssigneeID, domain.NotifyTicketAssigned, event.TicketID,
		fmt.Sprintf("Ticket %s reassigned to you", payload.TicketNumber),
		fmt.Sprintf("Reason: %s", payload.Reason))
	if payload.OldAssigneeID != nil && *payload.OldAssigneeID != payload.NewAssigneeID {
		s.deliver(ctx, *payload.OldAssigneeID, domain.NotifyTicketAssigned, event.TicketID,
			fmt.Sprintf("Ticket %s reassigned", payload.TicketNumber),
			"The ticket was moved to another handler.")
	}
	s.deliver(ctx, payload.CreatorID, domain.NotifyTicketAssigned, event.TicketID,
		fmt.Sprintf("Ticket %s has a new handler", payload.TicketNumber),
		"Your ticket was handed to a different handler.")
	return nil
}

func (s *NotificationService) onTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.CreatorID, domain.NotifyTicketResolved, event.TicketID,
		fmt.Sprintf("Ticket %s resolved", payload.TicketNumber),
		"Your ticket was resolved. You can rate the handling once you verified the outcome.")
	return nil
}

func (s *NotificationService) onSLAStatus(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAStatusPayload)
	if !ok || payload.AssigneeID == nil {
		return nil
	}
	kind := domain.NotifySLAAtRisk
	title := fmt.Sprintf("Ticket %s is at risk of breaching its SLA", payload.TicketNumber)
	if event.Type == events.EventSLABreached {
		kind = domain.NotifySLABreach
		title = fmt.Sprintf("Ticket %s breached its SLA", payload.TicketNumber)
	}
	s.deliver(ctx, *payload.AssigneeID, kind, event.TicketID,
		title,
		fmt.Sprintf("Resolution deadline: %s.", payload.Deadline.Format("2006-01-02 15:04 MST")))
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, userID int64, kind domain.NotificationType, ticketID int64, title, message string) {
	notification := &domain.Notification{
		UserID:          userID,
		Type:            kind,
		Title:           title,
		Message:         message,
		RelatedTicketID: &ticketID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Warn("notification write failed",
			zap.Int64("user_id", userID),
			zap.String("type", string(kind)),
			zap.Error(err))
	}
}
