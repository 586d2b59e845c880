package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caltrack/caltrack/internal/audit"
	"github.com/caltrack/caltrack/internal/auth"
	"github.com/caltrack/caltrack/internal/meals"
	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/shared"
	"github.com/caltrack/caltrack/internal/users"
)

// memStore backs the auth, users and meals repositories in memory.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*users.User
	hashes map[string]string
	meals  map[string]*meals.Meal
	audits []audit.TimelineRow
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*users.User),
		hashes: make(map[string]string),
		meals:  make(map[string]*meals.Meal),
	}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return &auth.User{
				ID:             u.ID,
				Email:          u.Email,
				PasswordHash:   m.hashes[u.ID],
				FirstName:      u.FirstName,
				LastName:       u.LastName,
				TargetCalories: u.TargetCalories,
				Role:           u.Role,
			}, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memStore) CreateUser(_ context.Context, in users.NewUser) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, u := range m.users {
		if u.Email == email {
			return users.User{}, fmt.Errorf("%w: email %s is already registered", httpx.ErrDuplicate, in.Email)
		}
	}
	now := time.Now().UTC()
	u := &users.User{
		ID:             uuid.NewString(),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          email,
		TargetCalories: in.TargetCalories,
		Role:           in.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.users[u.ID] = u
	m.hashes[u.ID] = in.PasswordHash
	return *u, nil
}

func (m *memStore) ListUsers(context.Context) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return users.User{}, fmt.Errorf("%w: target user %s is not found", httpx.ErrNotFound, id)
	}
	return *u, nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, upd users.UserUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.TargetCalories != nil {
		v := *upd.TargetCalories
		u.TargetCalories = &v
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	return 1, nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return 0, nil
	}
	delete(m.users, id)
	delete(m.hashes, id)
	for mealID, meal := range m.meals {
		if meal.UserID == id {
			delete(m.meals, mealID)
		}
	}
	return 1, nil
}

func (m *memStore) UserTarget(_ context.Context, userID string) (*int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: target user %s is not found", httpx.ErrNotFound, userID)
	}
	return u.TargetCalories, nil
}

func (m *memStore) CreateMeal(_ context.Context, userID string, in meals.MealInput) (meals.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return meals.Meal{}, fmt.Errorf("%w: target user %s is not found", httpx.ErrNotFound, userID)
	}
	now := time.Now().UTC()
	meal := &meals.Meal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Time:        in.Time,
		Calories:    in.Calories,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.meals[meal.ID] = meal
	return *meal, nil
}

func (m *memStore) ListMeals(_ context.Context, userID string, w meals.Window) ([]meals.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]meals.Meal, 0)
	for _, meal := range m.meals {
		if meal.UserID == userID && w.Contains(meal.Time) {
			out = append(out, *meal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (m *memStore) UpdateMeal(_ context.Context, userID, mealID string, in meals.MealInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meal, ok := m.meals[mealID]
	if !ok || meal.UserID != userID {
		return 0, nil
	}
	meal.Title, meal.Description, meal.Time, meal.Calories = in.Title, in.Description, in.Time, in.Calories
	return 1, nil
}

func (m *memStore) DeleteMeal(_ context.Context, userID, mealID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meal, ok := m.meals[mealID]
	if !ok || meal.UserID != userID {
		return 0, nil
	}
	delete(m.meals, mealID)
	return 1, nil
}

func (m *memStore) UsersWithMealsSince(_ context.Context, since int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, meal := range m.meals {
		if meal.Time >= since && !seen[meal.UserID] {
			seen[meal.UserID] = true
			out = append(out, meal.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) Record(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	m.audits = append(m.audits, audit.TimelineRow{
		ID:       int64(len(m.audits) + 1),
		At:       at,
		ActorID:  log.ActorID,
		Action:   log.Action,
		Entity:   log.Entity,
		EntityID: log.EntityID,
		Meta:     log.Meta,
	})
	return nil
}

func (m *memStore) Timeline(_ context.Context, q audit.Query) ([]audit.TimelineRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.TimelineRow, 0)
	for i := len(m.audits) - 1; i >= 0; i-- {
		row := m.audits[i]
		if (q.Action == "" || row.Action == q.Action) && (q.Actor == "" || row.ActorID == q.Actor) {
			out = append(out, row)
		}
	}
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

var (
	_ auth.Repository      = (*memStore)(nil)
	_ users.RepositoryPort = (*memStore)(nil)
	_ meals.RepositoryPort = (*memStore)(nil)
	_ audit.Repository     = (*memStore)(nil)
	_ shared.AuditRecorder = (*memStore)(nil)
)
