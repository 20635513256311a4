package dto

import (
	"time"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID              int64                   `json:"id"`
	Type            domain.NotificationType `json:"type"`
	Title           string                  `json:"title"`
	Message         string                  `json:"message"`
	RelatedTicketID *int64                  `json:"related_ticket_id,omitempty"`
	IsRead          bool                    `json:"is_read"`
	ReadAt          *time.Time              `json:"read_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// FromNotifications maps inbox entries.
func FromNotifications(notifications []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, NotificationResponse{
			ID:              n.ID,
			Type:            n.Type,
			Title:           n.Title,
			Message:         n.Message,
			RelatedTicketID: n.RelatedTicketID,
			IsRead:          n.IsRead,
			ReadAt:          n.ReadAt,
			CreatedAt:       n.CreatedAt,
		})
	}
	return out
}
