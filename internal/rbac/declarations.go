package rbac

import (
	"errors"
	"fmt"
)

// ErrDuplicateRoute is returned when a route is declared twice.
var ErrDuplicateRoute = errors.New("rbac: route already declared")

// RouteKey identifies one endpoint by method and full route pattern.
type RouteKey struct {
	Method  string
	Pattern string
}

func (k RouteKey) String() string {
	return k.Method + " " + k.Pattern
}

// Declarations maps endpoints to the roles allowed to call them. It is filled
// while the router is built and only read afterwards; Declare must not be
// called once requests are being served.
type Declarations struct {
	routes map[RouteKey][]Role
}

// NewDeclarations returns an empty table.
func NewDeclarations() *Declarations {
	return &Declarations{routes: make(map[RouteKey][]Role)}
}

// Declare attaches roles to key. Each role must be assignable or RoleSelf.
func (d *Declarations) Declare(key RouteKey, roles ...Role) error {
	if _, exists := d.routes[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
	}
	for _, role := range roles {
		if role != RoleSelf && !role.Assignable() {
			return fmt.Errorf("rbac: declare %s: %w: %q", key, ErrUnknownRole, string(role))
		}
	}
	d.routes[key] = append(make([]Role, 0, len(roles)), roles...)
	return nil
}

// Lookup returns a copy of the roles declared for key and whether anything was
// declared at all.
func (d *Declarations) Lookup(key RouteKey) ([]Role, bool) {
	if d == nil {
		return nil, false
	}
	roles, ok := d.routes[key]
	if !ok {
		return nil, false
	}
	return append([]Role(nil), roles...), true
}

// Len returns the number of declared routes.
func (d *Declarations) Len() int {
	if d == nil {
		return 0
	}
	return len(d.routes)
}
