package users

import (
	"time"

	"github.com/caltrack/caltrack/internal/rbac"
)

// User represents a user account for management. The password hash never
// leaves the repository.
type User struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	TargetCalories *int      `json:"targetCalories,omitempty"`
	Role           rbac.Role `json:"authLevel"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewUser carries the fields persisted for a new account.
type NewUser struct {
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	TargetCalories *int
	Role           rbac.Role
}

// UserUpdate lists the fields to change; nil fields keep their value.
type UserUpdate struct {
	FirstName      *string
	LastName       *string
	TargetCalories *int
	Role           *rbac.Role
}
