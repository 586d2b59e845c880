package auth

import "github.com/caltrack/caltrack/internal/rbac"

// User represents an account as seen by the login flow.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	TargetCalories *int
	Role           rbac.Role
}
