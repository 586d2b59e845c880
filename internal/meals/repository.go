package meals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caltrack/caltrack/internal/platform/db"
	"github.com/caltrack/caltrack/internal/platform/httpx"
)

const mealColumns = `id::text, user_id::text, title, description, eaten_at, calories, created_at, updated_at`

// Repository provides PostgreSQL backed meal persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserTarget returns the daily calorie target of a user, nil when unset.
func (r *Repository) UserTarget(ctx context.Context, userID string) (*int, error) {
	var target *int
	err := r.pool.QueryRow(ctx, `SELECT target_calories FROM users WHERE id = $1`, userID).Scan(&target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound(userID)
		}
		return nil, fmt.Errorf("meals: user target: %w", err)
	}
	return target, nil
}

// CreateMeal inserts a meal for an existing user. The user row is share
// locked so a concurrent delete cannot orphan the insert.
func (r *Repository) CreateMeal(ctx context.Context, userID string, in MealInput) (Meal, error) {
	var meal Meal
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id::text FROM users WHERE id = $1 FOR SHARE`, userID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return userNotFound(userID)
			}
			return fmt.Errorf("meals: lock user: %w", err)
		}
		row := tx.QueryRow(ctx, `INSERT INTO meals (id, user_id, title, description, eaten_at, calories)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+mealColumns, uuid.NewString(), userID, in.Title, in.Description, in.Time, in.Calories)
		var err error
		meal, err = scanMeal(row)
		if err != nil {
			return fmt.Errorf("meals: insert: %w", err)
		}
		return nil
	})
	return meal, err
}

// ListMeals returns the meals of a user inside w ordered by time.
func (r *Repository) ListMeals(ctx context.Context, userID string, w Window) ([]Meal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+mealColumns+` FROM meals
WHERE user_id = $1
  AND ($2::bigint IS NULL OR eaten_at >= $2)
  AND ($3::bigint IS NULL OR eaten_at <= $3)
ORDER BY eaten_at, id`, userID, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("meals: list: %w", err)
	}
	defer rows.Close()
	meals := make([]Meal, 0)
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("meals: list scan: %w", err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("meals: list: %w", err)
	}
	return meals, nil
}

// UpdateMeal replaces a meal owned by userID and returns the affected row count.
func (r *Repository) UpdateMeal(ctx context.Context, userID, mealID string, in MealInput) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE meals SET
	title = $3,
	description = $4,
	eaten_at = $5,
	calories = $6,
	updated_at = NOW()
WHERE user_id = $1 AND id = $2`, userID, mealID, in.Title, in.Description, in.Time, in.Calories)
	if err != nil {
		return 0, fmt.Errorf("meals: update: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteMeal removes a meal owned by userID and returns the affected row count.
func (r *Repository) DeleteMeal(ctx context.Context, userID, mealID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meals WHERE user_id = $1 AND id = $2`, userID, mealID)
	if err != nil {
		return 0, fmt.Errorf("meals: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UsersWithMealsSince lists the users that logged a meal at or after since.
func (r *Repository) UsersWithMealsSince(ctx context.Context, since int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id::text FROM meals WHERE eaten_at >= $1 ORDER BY 1`, since)
	if err != nil {
		return nil, fmt.Errorf("meals: active users: %w", err)
	}
	defer rows.Close()
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("meals: active users: %w", err)
	}
	return ids, nil
}

func scanMeal(row pgx.Row) (Meal, error) {
	var meal Meal
	err := row.Scan(&meal.ID, &meal.UserID, &meal.Title, &meal.Description, &meal.Time, &meal.Calories, &meal.CreatedAt, &meal.UpdatedAt)
	return meal, err
}

func userNotFound(id string) error {
	return fmt.Errorf("%w: target user %s is not found", httpx.ErrNotFound, id)
}

func mealNotFound(userID, mealID string) error {
	return fmt.Errorf("%w: meal %s of user %s is not found", httpx.ErrNotFound, mealID, userID)
}

var _ RepositoryPort = (*Repository)(nil)
