package rbac

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// RouteUserParam names the path parameter that identifies the target user.
const RouteUserParam = "id"

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal stored by ContextWithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// RequestFrom assembles the decision input for r from the attached principal,
// the decoded {id} path parameter and the endpoint's declaration.
func RequestFrom(r *http.Request, roles []Role, declared bool) Request {
	req := Request{
		DeclaredRoles: roles,
		Declared:      declared,
		RouteUserID:   routeUserID(r),
	}
	if p, ok := PrincipalFromContext(r.Context()); ok {
		req.Principal = &p
	}
	return req
}

func routeUserID(r *http.Request) string {
	return PathParam(r, RouteUserParam)
}

// PathParam returns the decoded value of the named chi path parameter. chi
// matches on r.URL.RawPath only when it is set; otherwise the value already
// comes from the decoded r.URL.Path and must not be unescaped again.
func PathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if raw == "" || r.URL == nil || r.URL.RawPath == "" {
		return raw
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
