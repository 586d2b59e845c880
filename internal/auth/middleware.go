package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
)

// Verifier turns a bearer credential into a principal.
type Verifier interface {
	Verify(token string) (rbac.Principal, error)
}

// Authenticator establishes the request principal from the bearer token.
type Authenticator struct {
	verifier Verifier
	logger   *slog.Logger
}

// NewAuthenticator builds the bearer authentication middleware.
func NewAuthenticator(verifier Verifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger}
}

// Middleware rejects requests without a valid bearer token with 401 and
// attaches the principal to the context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			a.reject(w, r, "missing bearer token")
			return
		}
		principal, err := a.verifier.Verify(token)
		if err != nil {
			a.reject(w, r, err.Error())
			return
		}
		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, reason string) {
	if a.logger != nil {
		a.logger.Debug("authentication failed", slog.String("path", r.URL.Path), slog.String("reason", reason))
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="caltrack"`)
	httpx.RespondError(w, ErrUnauthenticated)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
