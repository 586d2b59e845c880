package users

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/caltrack/caltrack/internal/rbac"
	"github.com/caltrack/caltrack/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	CreateUser(ctx context.Context, in NewUser) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (int64, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
}

// SummaryInvalidator drops cached summaries that depend on a user's target.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Service handles user business logic.
type Service struct {
	repo       RepositoryPort
	audit      shared.AuditRecorder
	summaries  SummaryInvalidator
	logger     *slog.Logger
	bcryptCost int
}

// Option customises the Service.
type Option func(*Service)

// WithAudit records user-management actions.
func WithAudit(audit shared.AuditRecorder) Option {
	return func(s *Service) { s.audit = audit }
}

// WithSummaryInvalidator invalidates meal summaries when a target changes.
func WithSummaryInvalidator(inv SummaryInvalidator) Option {
	return func(s *Service) { s.summaries = inv }
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, opts ...Option) *Service {
	s := &Service{repo: repo, bcryptCost: bcrypt.DefaultCost, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a self-service account. The role is always USER.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, NewUser{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         rbac.RoleUser,
	})
}

// CreateWithPrivileges creates an account with an explicit role and target.
func (s *Service) CreateWithPrivileges(ctx context.Context, actor rbac.Principal, req CreateUserRequest) (User, error) {
	role := rbac.RoleUser
	if req.AuthLevel != "" {
		parsed, err := rbac.ParseRole(req.AuthLevel)
		if err != nil {
			return User{}, err
		}
		role = parsed
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		PasswordHash:   hash,
		TargetCalories: req.TargetCalories,
		Role:           role,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.create", user.ID, map[string]any{"authLevel": string(role)})
	return user, nil
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateUser applies a partial update. Role changes are applied only when
// the actor is an administrator.
func (s *Service) UpdateUser(ctx context.Context, actor rbac.Principal, id string, req UpdateUserRequest) (shared.MutationResult, error) {
	upd := UserUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		TargetCalories: req.TargetCalories,
	}
	if req.AuthLevel != nil && actor.Role == rbac.RoleAdmin {
		role, err := rbac.ParseRole(*req.AuthLevel)
		if err != nil {
			return shared.MutationResult{}, err
		}
		upd.Role = &role
	}
	affected, err := s.repo.UpdateUser(ctx, id, upd)
	if err != nil {
		return shared.MutationResult{}, err
	}
	if affected == 0 {
		return shared.MutationResult{}, notFound(id)
	}
	if upd.TargetCalories != nil && s.summaries != nil {
		if err := s.summaries.Invalidate(ctx, id); err != nil {
			s.logger.Warn("summary invalidation failed", slog.String("user_id", id), slog.Any("error", err))
		}
	}
	if upd.Role != nil {
		s.record(ctx, actor, "user.role_change", id, map[string]any{"authLevel": string(*upd.Role)})
	}
	return shared.NewMutationResult(affected), nil
}

// DeleteUser removes a user and their meals.
func (s *Service) DeleteUser(ctx context.Context, actor rbac.Principal, id string) (shared.MutationResult, error) {
	affected, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return shared.MutationResult{}, err
	}
	if affected == 0 {
		return shared.MutationResult{}, notFound(id)
	}
	s.record(ctx, actor, "user.delete", id, nil)
	return shared.NewMutationResult(affected), nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

// record writes an audit entry; failures are logged and never fail the request.
func (s *Service) record(ctx context.Context, actor rbac.Principal, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.String("entity_id", entityID), slog.Any("error", err))
	}
}
