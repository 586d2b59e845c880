package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
)

const uniqueViolation = "23505"

const userColumns = `id::text, first_name, last_name, email, target_calories, auth_level, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts a new account.
func (r *Repository) CreateUser(ctx context.Context, in NewUser) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (id, first_name, last_name, email, password_hash, target_calories, auth_level)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+userColumns,
		uuid.NewString(), in.FirstName, in.LastName, normalizeEmail(in.Email), in.PasswordHash, in.TargetCalories, string(in.Role),
	)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, fmt.Errorf("%w: email %s is already registered", httpx.ErrDuplicate, in.Email)
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return user, nil
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: list scan: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return users, nil
}

// GetUser fetches a single user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound(id)
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

// UpdateUser applies the non-nil fields of upd and returns the affected row count.
func (r *Repository) UpdateUser(ctx context.Context, id string, upd UserUpdate) (int64, error) {
	var role *string
	if upd.Role != nil {
		v := string(*upd.Role)
		role = &v
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET
	first_name = COALESCE($2, first_name),
	last_name = COALESCE($3, last_name),
	target_calories = COALESCE($4, target_calories),
	auth_level = COALESCE($5, auth_level),
	updated_at = NOW()
WHERE id = $1`, id, upd.FirstName, upd.LastName, upd.TargetCalories, role)
	if err != nil {
		return 0, fmt.Errorf("users: update: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteUser removes a user; meals cascade.
func (r *Repository) DeleteUser(ctx context.Context, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("users: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Exists reports whether a user with id exists.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("users: exists: %w", err)
	}
	return exists, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.TargetCalories, &role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Role = rbac.Role(role)
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func notFound(id string) error {
	return fmt.Errorf("%w: target user %s is not found", httpx.ErrNotFound, id)
}

var _ RepositoryPort = (*Repository)(nil)
