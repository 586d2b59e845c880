package rbac

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Allowed reports whether the decision lets the request through.
func (d Decision) Allowed() bool {
	return d == Allow
}

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Request carries everything Decide needs for a single call.
type Request struct {
	// Principal is nil when no caller was authenticated.
	Principal *Principal
	// DeclaredRoles is the endpoint's allow-list. Declared is false when the
	// endpoint attached no restriction at all.
	DeclaredRoles []Role
	Declared      bool
	// RouteUserID is the {id} path parameter; empty when the route has none.
	RouteUserID string
}

// Decide evaluates req. Undeclared endpoints and empty allow-lists impose no
// restriction. Otherwise the principal must hold a listed role, or SELF must be
// listed and the route's user id must equal the principal id exactly.
func Decide(req Request) Decision {
	if !req.Declared || len(req.DeclaredRoles) == 0 {
		return Allow
	}
	if req.Principal == nil {
		return Deny
	}
	if isRoleAuthorized(req.DeclaredRoles, req.Principal.Role) || isSelf(req) {
		return Allow
	}
	return Deny
}

func isSelf(req Request) bool {
	if req.RouteUserID == "" || req.Principal.ID == "" {
		return false
	}
	return contains(req.DeclaredRoles, RoleSelf) && req.RouteUserID == req.Principal.ID
}

func isRoleAuthorized(declared []Role, role Role) bool {
	if role == RoleSelf {
		return false
	}
	return contains(declared, role)
}

func contains(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
