package rbac

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Route declares an endpoint together with the roles allowed to call it.
// A nil Roles slice leaves the endpoint unrestricted.
type Route struct {
	Method  string
	Pattern string
	Roles   []Role
	Handler http.HandlerFunc
}

// Require builds an allow-list, e.g. Require(RoleSelf, RoleUserManager, RoleAdmin).
func Require(roles ...Role) []Role {
	if roles == nil {
		return []Role{}
	}
	return roles
}

// Mount declares every route under prefix and registers it on r behind a
// guard bound to that route.
func (m Middleware) Mount(r chi.Router, prefix string, routes []Route) error {
	for _, route := range routes {
		key := RouteKey{Method: route.Method, Pattern: joinPattern(prefix, route.Pattern)}
		if route.Roles != nil {
			if err := m.Declarations.Declare(key, route.Roles...); err != nil {
				return err
			}
		}
		r.With(m.Guard(key)).Method(route.Method, route.Pattern, route.Handler)
	}
	return nil
}

func joinPattern(prefix, pattern string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if pattern == "" || pattern == "/" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	return prefix + pattern
}
