package service

import (
	"context"
	"testing"

	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/events"
)

func TestNotificationsFollowEvents(t *testing.T) {
	repo := &MockNotificationRepository{}
	svc := NewNotificationService(repo, nil)
	dispatcher := events.NewInMemoryDispatcher()
	svc.Register(dispatcher)

	assignee := int64(5)
	old := int64(2)

	tests := []struct {
		name      string
		event     events.Event
		wantUsers []int64
		wantType  domain.NotificationType
	}{
		{
			name: "created notifies the creator",
			event: events.Event{
				Type:     events.EventTicketCreated,
				TicketID: 1,
				Payload:  events.TicketCreatedPayload{TicketNumber: "TIK-000001", CreatorID: 7},
			},
			wantUsers: []int64{7},
			wantType:  domain.NotifyTicketCreated,
		},
		{
			name: "forward notifies the receiving handler",
			event: events.Event{
				Type:     events.EventTicketForwarded,
				TicketID: 1,
				Payload:  events.TicketForwardedPayload{TicketNumber: "TIK-000001", ToUserID: 5, Reason: "butuh teknisi"},
			},
			wantUsers: []int64{5},
			wantType:  domain.NotifyTicketDisposisi,
		},
		{
			name: "reassign notifies both handlers and the creator",
			event: events.Event{
				Type:     events.EventTicketReassigned,
				TicketID: 1,
				Payload: events.TicketReassignedPayload{
					TicketNumber:  "TIK-000001",
					OldAssigneeID: &old,
					NewAssigneeID: 5,
					CreatorID:     7,
				},
			},
			wantUsers: []int64{5, 2, 7},
			wantType:  domain.NotifyTicketAssigned,
		},
		{
			name: "resolution notifies the creator",
			event: events.Event{
				Type:     events.EventTicketResolved,
				TicketID: 1,
				Payload:  events.TicketResolvedPayload{TicketNumber: "TIK-000001", CreatorID: 7},
			},
			wantUsers: []int64{7},
			wantType:  domain.NotifyTicketResolved,
		},
		{
			name: "breach notifies the assignee",
			event: events.Event{
				Type:     events.EventSLABreached,
				TicketID: 1,
				Payload: events.SLAStatusPayload{
					TicketNumber: "TIK-000001",
					SLAStatus:    domain.SLAStatusBreached,
					AssigneeID:   &assignee,
				},
			},
			wantUsers: []int64{5},
			wantType:  domain.NotifySLABreach,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo.Notifications = nil
			if err := dispatcher.Publish(context.Background(), tt.event); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(repo.Notifications) != len(tt.wantUsers) {
				t.Fatalf("notifications = %d, want %d", len(repo.Notifications), len(tt.wantUsers))
			}
			for i, want := range tt.wantUsers {
				got := repo.Notifications[i]
				if got.UserID != want {
					t.Errorf("notification[%d].UserID = %d, want %d", i, got.UserID, want)
				}
				if got.RelatedTicketID == nil || *got.RelatedTicketID != 1 {
					t.Errorf("notification[%d].RelatedTicketID = %v, want 1", i, got.RelatedTicketID)
				}
			}
			if repo.Notifications[0].Type != tt.wantType {
				t.Errorf("type = %s, want %s", repo.Notifications[0].Type, tt.wantType)
			}
		})
	}
}

func TestSLAEventWithoutAssigneeIsDropped(t *testing.T) {
	repo := &MockNotificationRepository{}
	svc := NewNotificationService(repo, nil)
	dispatcher := events.NewInMemoryDispatcher()
	svc.Register(dispatcher)

	event := events.Event{
		Type:     events.EventSLAAtRisk,
		TicketID: 1,
		Payload:  events.SLAStatusPayload{TicketNumber: "TIK-000001", SLAStatus: domain.SLAStatusAtRisk},
	}
	if err := dispatcher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(repo.Notifications) != 0 {
		t.Errorf("notifications = %d, want none without an assignee", len(repo.Notifications))
	}
}
