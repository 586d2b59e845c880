package rbac

import (
	"fmt"

	"github.com/caltrack/caltrack/internal/platform/httpx"
)

// ErrForbidden indicates the principal may not invoke the endpoint.
var ErrForbidden = fmt.Errorf("rbac: %w", httpx.ErrForbidden)

// ErrUnknownRole is returned by ParseRole for values outside the closed role set.
var ErrUnknownRole = fmt.Errorf("rbac: unknown role: %w", httpx.ErrValidation)

// Role is a privilege level assignable to a principal.
type Role string

const (
	RoleUser        Role = "USER"
	RoleUserManager Role = "USER_MANAGER"
	RoleAdmin       Role = "ADMIN"

	// RoleSelf only appears in allow-lists. It matches when the caller acts on
	// the user identified by the route's {id} parameter.
	RoleSelf Role = "SELF"
)

// AssignableRoles returns the roles a principal may hold.
func AssignableRoles() []Role {
	return []Role{RoleUser, RoleUserManager, RoleAdmin}
}

// Assignable reports whether r may be held by a principal.
func (r Role) Assignable() bool {
	switch r {
	case RoleUser, RoleUserManager, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts raw into an assignable Role. Matching is case-sensitive.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Assignable() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Principal describes the authenticated caller of a request.
type Principal struct {
	ID   string
	Role Role
}

// Valid reports whether the principal carries an id and an assignable role.
func (p Principal) Valid() bool {
	return p.ID != "" && p.Role.Assignable()
}
