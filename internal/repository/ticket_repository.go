package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/servicedesk/internal/domain"
)

const ticketColumns = `id, ticket_number, subject, description, status, priority, category,
               subcategory, type, department, progress, is_simple, current_handler, user_id,
               assigned_to, created_at, updated_at, estimated_completion, completed_at,
               sla_deadline, sla_status, escalation_level, reopen_count, customer_satisfaction,
               resolution_time, first_response_time, tags, metadata`

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Status            *domain.TicketStatus
	Category          *string
	Priority          *domain.TicketPriority
	Department        *string
	AssignedTo        *int64
	UserID            *int64
	AssignedOrCreated *int64
	SearchTerm        *string
	Limit             int
	Offset            int
}

// StatusCount is one row of a grouped status/priority/category count.
type StatusCount struct {
	Key   string
	Count int
}

// TicketStats aggregates grouped counts for a creator or globally.
type TicketStats struct {
	Total      int
	ByStatus   []StatusCount
	ByPriority []StatusCount
	ByCategory []StatusCount
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	CountActiveByAssignee(ctx context.Context, userID int64) (int, error)
	CountActiveUrgentByAssignee(ctx context.Context, userID int64) (int, error)
	CountCompletedInCategory(ctx context.Context, userID int64, category string) (int, error)
	AvgSatisfaction(ctx context.Context, userID int64) (float64, error)
	ClaimSLAStatus(ctx context.Context, ticketID int64, from, to domain.SLAStatus) (bool, error)
	Stats(ctx context.Context, userID *int64) (*TicketStats, error)
}

type ticketRepository struct {
	pool         *pgxpool.Pool
	numberPrefix string
}

// NewTicketRepository instantiates repository. numberPrefix is the human
// ticket-number prefix, e.g. "TIK".
func NewTicketRepository(pool *pgxpool.Pool, numberPrefix string) TicketRepository {
	if numberPrefix == "" {
		numberPrefix = "TIK"
	}
	return &ticketRepository{pool: pool, numberPrefix: numberPrefix}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, subject, description, status, priority, category,
            subcategory, type, department, progress, is_simple, current_handler, user_id,
            assigned_to, estimated_completion, sla_deadline, sla_status, tags, metadata)
        VALUES ($19 || '-' || lpad(nextval('ticket_number_seq')::text, 6, '0'),
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, ticket_number, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.Subcategory,
		ticket.Type,
		ticket.Department,
		ticket.Progress,
		ticket.IsSimple,
		ticket.CurrentHandler,
		ticket.UserID,
		ticket.AssignedTo,
		ticket.EstimatedCompletion,
		ticket.SLADeadline,
		ticket.SLAStatus,
		ticket.Tags,
		ticket.Metadata,
		r.numberPrefix,
	).Scan(&ticket.ID, &ticket.TicketNumber, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, category=$5,
            subcategory=$6, type=$7, department=$8, progress=$9, is_simple=$10,
            current_handler=$11, assigned_to=$12, estimated_completion=$13, completed_at=$14,
            sla_deadline=$15, sla_status=$16, escalation_level=$17, reopen_count=$18,
            customer_satisfaction=$19, resolution_time=$20, first_response_time=$21,
            tags=$22, metadata=$23, updated_at=NOW()
        WHERE id=$24`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.Subcategory,
		ticket.Type,
		ticket.Department,
		ticket.Progress,
		ticket.IsSimple,
		ticket.CurrentHandler,
		ticket.AssignedTo,
		ticket.EstimatedCompletion,
		ticket.CompletedAt,
		ticket.SLADeadline,
		ticket.SLAStatus,
		ticket.EscalationLevel,
		ticket.ReopenCount,
		ticket.CustomerSatisfaction,
		ticket.ResolutionTime,
		ticket.FirstResponseTime,
		ticket.Tags,
		ticket.Metadata,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_number=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	return scanTicket(row)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.AssignedOrCreated != nil {
		args = append(args, *filter.AssignedOrCreated)
		placeholder := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(user_id=$%d OR assigned_to=$%d OR current_handler=$%d)", placeholder, placeholder, placeholder))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(ticket_number) LIKE %s OR LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM tickets WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets
             WHERE status NOT IN ($1,$2) AND sla_deadline IS NOT NULL
             ORDER BY sla_deadline ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusCompleted, domain.TicketStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, userID int64) (int, error) {
	const query = `
        SELECT count(*) FROM tickets
        WHERE assigned_to=$1 AND status NOT IN ($2,$3)`
	var count int
	err := r.pool.QueryRow(ctx, query, userID,
		domain.TicketStatusCompleted, domain.TicketStatusCancelled).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountActiveUrgentByAssignee(ctx context.Context, userID int64) (int, error) {
	const query = `
        SELECT count(*) FROM tickets
        WHERE assigned_to=$1 AND priority=$2 AND status NOT IN ($3,$4)`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, domain.TicketPriorityUrgent,
		domain.TicketStatusCompleted, domain.TicketStatusCancelled).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountCompletedInCategory(ctx context.Context, userID int64, category string) (int, error) {
	const query = `
        SELECT count(*) FROM tickets
        WHERE assigned_to=$1 AND status=$2 AND category=$3`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, domain.TicketStatusCompleted, category).Scan(&count)
	return count, err
}

func (r *ticketRepository) AvgSatisfaction(ctx context.Context, userID int64) (float64, error) {
	const query = `
        SELECT COALESCE(avg(customer_satisfaction), 3) FROM tickets
        WHERE assigned_to=$1 AND status=$2 AND customer_satisfaction IS NOT NULL`
	var avg float64
	err := r.pool.QueryRow(ctx, query, userID, domain.TicketStatusCompleted).Scan(&avg)
	return avg, err
}

// ClaimSLAStatus transitions sla_status with a compare-and-swap so concurrent
// sweeps apply each transition at most once. Returns false when another writer
// already claimed it.
func (r *ticketRepository) ClaimSLAStatus(ctx context.Context, ticketID int64, from, to domain.SLAStatus) (bool, error) {
	const query = `
        UPDATE tickets SET sla_status=$1, updated_at=NOW()
        WHERE id=$2 AND sla_status=$3 AND status NOT IN ($4,$5)`
	cmd, err := r.pool.Exec(ctx, query, to, ticketID, from,
		domain.TicketStatusCompleted, domain.TicketStatusCancelled)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) Stats(ctx context.Context, userID *int64) (*TicketStats, error) {
	where := ""
	args := []any{}
	if userID != nil {
		args = append(args, *userID)
		where = " WHERE user_id=$1"
	}

	stats := &TicketStats{}
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tickets`+where, args...).Scan(&stats.Total); err != nil {
		return nil, err
	}

	for _, group := range []struct {
		column string
		dest   *[]StatusCount
	}{
		{"status", &stats.ByStatus},
		{"priority", &stats.ByPriority},
		{"category", &stats.ByCategory},
	} {
		query := fmt.Sprintf(`SELECT %s, count(*) FROM tickets%s GROUP BY %s`, group.column, where, group.column)
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var entry StatusCount
			if err := rows.Scan(&entry.Key, &entry.Count); err != nil {
				rows.Close()
				return nil, err
			}
			*group.dest = append(*group.dest, entry)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

type ticketRow interface {
	Scan(dest ...any) error
}

func scanTicket(row ticketRow) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.Type,
		&ticket.Department,
		&ticket.Progress,
		&ticket.IsSimple,
		&ticket.CurrentHandler,
		&ticket.UserID,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.EstimatedCompletion,
		&ticket.CompletedAt,
		&ticket.SLADeadline,
		&ticket.SLAStatus,
		&ticket.EscalationLevel,
		&ticket.ReopenCount,
		&ticket.CustomerSatisfaction,
		&ticket.ResolutionTime,
		&ticket.FirstResponseTime,
		&ticket.Tags,
		&ticket.Metadata,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
