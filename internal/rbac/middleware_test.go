package rbac

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDecision struct {
	route    string
	decision string
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedDecision
}

func (f *fakeRecorder) RecordDecision(route, decision string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedDecision{route: route, decision: decision})
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// withPrincipal mimics the authenticator by attaching p to every request.
func withPrincipal(p *Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p != nil {
				r = r.WithContext(ContextWithPrincipal(r.Context(), *p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newTestRouter(t *testing.T, p *Principal, rec DecisionRecorder) (*chi.Mux, *Declarations) {
	t.Helper()
	decls := NewDeclarations()
	m := Middleware{Declarations: decls, Logger: slog.New(slog.DiscardHandler), Recorder: rec}
	r := chi.NewRouter()
	r.Use(withPrincipal(p))
	r.Route("/api/users", func(r chi.Router) {
		require.NoError(t, m.Mount(r, "/api/users", []Route{
			{Method: http.MethodGet, Pattern: "/", Roles: Require(RoleUserManager, RoleAdmin), Handler: okHandler},
			{Method: http.MethodGet, Pattern: "/{id}/meals", Roles: Require(RoleSelf, RoleUserManager, RoleAdmin), Handler: okHandler},
			{Method: http.MethodPost, Pattern: "/new", Handler: okHandler},
		}))
	})
	return r, decls
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMountDeclaresPrefixedPatterns(t *testing.T) {
	_, decls := newTestRouter(t, nil, nil)

	roles, ok := decls.Lookup(RouteKey{Method: http.MethodGet, Pattern: "/api/users"})
	require.True(t, ok)
	assert.Equal(t, []Role{RoleUserManager, RoleAdmin}, roles)

	_, ok = decls.Lookup(RouteKey{Method: http.MethodGet, Pattern: "/api/users/{id}/meals"})
	assert.True(t, ok)

	_, ok = decls.Lookup(RouteKey{Method: http.MethodPost, Pattern: "/api/users/new"})
	assert.False(t, ok, "routes without roles stay undeclared")
	assert.Equal(t, 2, decls.Len())
}

func TestMountRejectsDuplicateDeclaration(t *testing.T) {
	m := Middleware{Declarations: NewDeclarations()}
	routes := []Route{{Method: http.MethodGet, Pattern: "/x", Roles: Require(RoleAdmin), Handler: okHandler}}
	require.NoError(t, m.Mount(chi.NewRouter(), "/a", routes))
	assert.ErrorIs(t, m.Mount(chi.NewRouter(), "/a", routes), ErrDuplicateRoute)
}

func TestGuardSelfAccess(t *testing.T) {
	alice := &Principal{ID: "alice", Role: RoleUser}
	rec := &fakeRecorder{}
	r, _ := newTestRouter(t, alice, rec)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/users/alice/meals").Code)

	denied := serve(r, http.MethodGet, "/api/users/bob/meals")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Contains(t, denied.Header().Get("Content-Type"), "application/problem+json")
	body, err := io.ReadAll(denied.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "enough privileges")

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/users").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/api/users/new").Code)

	assert.Equal(t, []recordedDecision{
		{route: "GET /api/users/{id}/meals", decision: "allow"},
		{route: "GET /api/users/{id}/meals", decision: "deny"},
		{route: "GET /api/users", decision: "deny"},
		{route: "POST /api/users/new", decision: "allow"},
	}, rec.seen)
}

func TestGuardPercentEncodedID(t *testing.T) {
	p := &Principal{ID: "a b", Role: RoleUser}
	r, _ := newTestRouter(t, p, nil)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/users/a%20b/meals").Code)
}

func TestGuardDecodesRouteIDOnce(t *testing.T) {
	r, _ := newTestRouter(t, &Principal{ID: "xA", Role: RoleUser}, nil)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/users/x%2541/meals").Code)

	r, _ = newTestRouter(t, &Principal{ID: "x%41", Role: RoleUser}, nil)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/users/x%2541/meals").Code)
}

func TestGuardEscapedSlashInRouteID(t *testing.T) {
	r, _ := newTestRouter(t, &Principal{ID: "a/b", Role: RoleUser}, nil)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/users/a%2Fb/meals").Code)

	r, _ = newTestRouter(t, &Principal{ID: "a%2Fb", Role: RoleUser}, nil)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/users/a%2Fb/meals").Code)
}

func TestPathParam(t *testing.T) {
	withParam := func(target, value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(RouteUserParam, value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	// Path already decoded by net/url: RawPath is empty, value is used as is.
	req := withParam("/api/users/x%2541", "x%41")
	require.Empty(t, req.URL.RawPath)
	assert.Equal(t, "x%41", PathParam(req, RouteUserParam))

	// chi routed on RawPath: the value is still escaped.
	req = withParam("/api/users/a%2Fb", "a%2Fb")
	require.NotEmpty(t, req.URL.RawPath)
	assert.Equal(t, "a/b", PathParam(req, RouteUserParam))

	assert.Empty(t, PathParam(withParam("/api/users", ""), RouteUserParam))
}

func TestGuardRoleAccess(t *testing.T) {
	manager := &Principal{ID: "m", Role: RoleUserManager}
	r, _ := newTestRouter(t, manager, nil)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/users").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/users/anyone/meals").Code)
}

func TestGuardWithoutPrincipalDenies(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/users/alice/meals").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/api/users/new").Code)
}

func TestRequireNeverReturnsNil(t *testing.T) {
	roles := Require()
	assert.NotNil(t, roles)
	assert.Empty(t, roles)
	assert.Equal(t, []Role{RoleAdmin}, Require(RoleAdmin))
}

func TestJoinPattern(t *testing.T) {
	cases := map[[2]string]string{
		{"/api/users", "/"}:      "/api/users",
		{"/api/users/", "/{id}"}: "/api/users/{id}",
		{"/api/users", "{id}"}:   "/api/users/{id}",
		{"", "/"}:                "/",
		{"", ""}:                 "/",
		{"/api", "/users/{id}"}:  "/api/users/{id}",
	}
	for in, want := range cases {
		assert.Equal(t, want, joinPattern(in[0], in[1]), "%v", in)
	}
}

func TestRequestFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/users/abc%2Fdef", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(RouteUserParam, "abc%2Fdef")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = ContextWithPrincipal(ctx, Principal{ID: "abc/def", Role: RoleUser})
	req = req.WithContext(ctx)

	got := RequestFrom(req, []Role{RoleSelf}, true)
	assert.Equal(t, "abc/def", got.RouteUserID)
	require.NotNil(t, got.Principal)
	assert.Equal(t, "abc/def", got.Principal.ID)
	assert.True(t, got.Declared)
	assert.Equal(t, Allow, Decide(got))
}

func TestRequestFromWithoutParamOrPrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil)
	got := RequestFrom(req, nil, false)
	assert.Empty(t, got.RouteUserID)
	assert.Nil(t, got.Principal)
	assert.False(t, got.Declared)
}

func TestPrincipalFromContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithPrincipal(context.Background(), Principal{ID: "x", Role: RoleAdmin})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, p.Role)
}
