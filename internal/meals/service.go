package meals

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/caltrack/caltrack/internal/platform/cache"
	"github.com/caltrack/caltrack/internal/shared"
)

// RepositoryPort defines data access methods for meals.
type RepositoryPort interface {
	UserTarget(ctx context.Context, userID string) (*int, error)
	CreateMeal(ctx context.Context, userID string, in MealInput) (Meal, error)
	ListMeals(ctx context.Context, userID string, w Window) ([]Meal, error)
	UpdateMeal(ctx context.Context, userID, mealID string, in MealInput) (int64, error)
	DeleteMeal(ctx context.Context, userID, mealID string) (int64, error)
	UsersWithMealsSince(ctx context.Context, since int64) ([]string, error)
}

// Service handles meal logging and daily summaries.
type Service struct {
	repo        RepositoryPort
	cache       *cache.JSONCache
	logger      *slog.Logger
	summaryDays int
	now         func() time.Time
}

// Option customises the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSummaryDays sets the default summary window length in days.
func WithSummaryDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.summaryDays = days
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds Service instance. A nil cache disables summary caching.
func NewService(repo RepositoryPort, summaries *cache.JSONCache, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		cache:       summaries,
		logger:      slog.Default(),
		summaryDays: 7,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMeal logs a meal for userID.
func (s *Service) AddMeal(ctx context.Context, userID string, req MealRequest) (Meal, error) {
	meal, err := s.repo.CreateMeal(ctx, userID, req.input())
	if err != nil {
		return Meal{}, err
	}
	s.invalidate(ctx, userID)
	return meal, nil
}

// ListMeals returns the meals of userID inside w.
func (s *Service) ListMeals(ctx context.Context, userID string, w Window) (UserMeals, error) {
	if _, err := s.repo.UserTarget(ctx, userID); err != nil {
		return UserMeals{}, err
	}
	meals, err := s.repo.ListMeals(ctx, userID, w)
	if err != nil {
		return UserMeals{}, err
	}
	return UserMeals{ID: userID, Meals: meals}, nil
}

// UpdateMeal replaces a meal of userID.
func (s *Service) UpdateMeal(ctx context.Context, userID, mealID string, req MealRequest) (shared.MutationResult, error) {
	affected, err := s.repo.UpdateMeal(ctx, userID, mealID, req.input())
	if err != nil {
		return shared.MutationResult{}, err
	}
	if affected == 0 {
		return shared.MutationResult{}, mealNotFound(userID, mealID)
	}
	s.invalidate(ctx, userID)
	return shared.NewMutationResult(affected), nil
}

// DeleteMeal removes a meal of userID.
func (s *Service) DeleteMeal(ctx context.Context, userID, mealID string) (shared.MutationResult, error) {
	affected, err := s.repo.DeleteMeal(ctx, userID, mealID)
	if err != nil {
		return shared.MutationResult{}, err
	}
	if affected == 0 {
		return shared.MutationResult{}, mealNotFound(userID, mealID)
	}
	s.invalidate(ctx, userID)
	return shared.NewMutationResult(affected), nil
}

// DefaultWindow returns the summary window used when no bounds are given.
func (s *Service) DefaultWindow() (int64, int64) {
	return DefaultWindow(s.now(), s.summaryDays)
}

// Summary returns per-day totals for userID between from and to, served
// from the cache when possible.
func (s *Service) Summary(ctx context.Context, userID string, from, to int64) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, userID, "summary", strconv.FormatInt(from, 10), strconv.FormatInt(to, 10))
	if err != nil {
		s.logger.Warn("summary cache key failed", slog.String("user_id", userID), slog.Any("error", err))
		return s.buildSummary(ctx, userID, from, to)
	}
	var summary Summary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.buildSummary(ctx, userID, from, to)
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// ActiveUsers lists users with meals logged in the last days days.
func (s *Service) ActiveUsers(ctx context.Context, days int) ([]string, error) {
	from, _ := DefaultWindow(s.now(), days)
	return s.repo.UsersWithMealsSince(ctx, from)
}

// Invalidate drops cached summaries of userID.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Bump(ctx, userID)
}

func (s *Service) buildSummary(ctx context.Context, userID string, from, to int64) (Summary, error) {
	target, err := s.repo.UserTarget(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	meals, err := s.repo.ListMeals(ctx, userID, Window{From: &from, To: &to})
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ID:             userID,
		From:           from,
		To:             to,
		TargetCalories: target,
		Days:           Summarize(meals, target),
	}, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("summary cache invalidation failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}
