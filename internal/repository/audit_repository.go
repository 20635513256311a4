package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// AuditRepository stores write-once compliance entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
	ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLogEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO audit_logs (ticket_id, actor_id, action, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, actor_id, action, old_value, new_value, created_at
        FROM audit_logs WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		var entry domain.AuditLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Action,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
