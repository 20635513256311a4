package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// UserFilter narrows directory lookups.
type UserFilter struct {
	Role       *domain.UserRole
	Department *string
	Limit      int
}

// UserRepository consumes the user directory. The workflow engine only reads it.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, department, position, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id=$1`, userColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email=$1`, userColumns)
	return r.fetchSingle(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Department,
		&user.Position,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY id ASC LIMIT %d`,
		userColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.Department,
			&user.Position,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
