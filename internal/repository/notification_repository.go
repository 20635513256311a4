package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// NotificationRepository persists per-user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, type, title, message, related_ticket_id, is_read)
        VALUES ($1,$2,$3,$4,$5,false)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.RelatedTicketID,
	).Scan(&notification.ID, &notification.CreatedAt)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
        SELECT id, user_id, type, title, message, related_ticket_id, is_read, read_at, created_at
        FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND is_read=false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.RelatedTicketID,
			&notification.IsRead,
			&notification.ReadAt,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, notification)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID, userID int64) error {
	const query = `
        UPDATE notifications SET is_read=true, read_at=NOW()
        WHERE id=$1 AND user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, notificationID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	const query = `
        UPDATE notifications SET is_read=true, read_at=NOW()
        WHERE user_id=$1 AND is_read=false`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}
