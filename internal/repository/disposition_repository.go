package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// DispositionRepository stores the append-only forwarding chain.
type DispositionRepository interface {
	// AppendAndApply persists the event and the resulting ticket state in one
	// transaction, so a crash cannot leave a chain entry without the matching
	// handler change (or vice versa).
	AppendAndApply(ctx context.Context, event *domain.DispositionEvent, ticket *domain.Ticket) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.DispositionEvent, error)
}

type dispositionRepository struct {
	pool *pgxpool.Pool
}

// NewDispositionRepository builds repository.
func NewDispositionRepository(pool *pgxpool.Pool) DispositionRepository {
	return &dispositionRepository{pool: pool}
}

func (r *dispositionRepository) AppendAndApply(ctx context.Context, event *domain.DispositionEvent, ticket *domain.Ticket) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertQuery = `
        INSERT INTO disposition_events (ticket_id, from_user_id, to_user_id, reason, notes,
            progress_update, action_type, expected_completion_time, sla_impact)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertQuery,
		event.TicketID,
		event.FromUserID,
		event.ToUserID,
		event.Reason,
		event.Notes,
		event.ProgressUpdate,
		event.ActionType,
		event.ExpectedCompletionTime,
		event.SLAImpact,
	).Scan(&event.ID, &event.CreatedAt); err != nil {
		return err
	}

	const updateQuery = `
        UPDATE tickets SET status=$1, progress=$2, current_handler=$3, assigned_to=$4,
            escalation_level=$5, first_response_time=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := tx.Exec(ctx, updateQuery,
		ticket.Status,
		ticket.Progress,
		ticket.CurrentHandler,
		ticket.AssignedTo,
		ticket.EscalationLevel,
		ticket.FirstResponseTime,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *dispositionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.DispositionEvent, error) {
	// id breaks ties between equal created_at values: serial order is
	// insertion order.
	const query = `
        SELECT id, ticket_id, from_user_id, to_user_id, reason, notes, progress_update,
               action_type, expected_completion_time, sla_impact, created_at
        FROM disposition_events WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list disposition events: %w", err)
	}
	defer rows.Close()

	var result []domain.DispositionEvent
	for rows.Next() {
		var event domain.DispositionEvent
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.FromUserID,
			&event.ToUserID,
			&event.Reason,
			&event.Notes,
			&event.ProgressUpdate,
			&event.ActionType,
			&event.ExpectedCompletionTime,
			&event.SLAImpact,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
