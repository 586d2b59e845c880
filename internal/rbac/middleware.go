package rbac

import (
	"log/slog"
	"net/http"

	"github.com/caltrack/caltrack/internal/platform/httpx"
)

// DecisionRecorder receives one observation per evaluated request.
type DecisionRecorder interface {
	RecordDecision(route, decision string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Declarations *Declarations
	Logger       *slog.Logger
	Recorder     DecisionRecorder
}

// Guard evaluates the declaration stored for key on every request and rejects
// denied requests with 403 before next runs.
func (m Middleware) Guard(key RouteKey) func(http.Handler) http.Handler {
	route := key.String()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, declared := m.Declarations.Lookup(key)
			req := RequestFrom(r, roles, declared)
			decision := Decide(req)
			if m.Recorder != nil {
				m.Recorder.RecordDecision(route, decision.String())
			}
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				attrs := []any{slog.String("route", route)}
				if req.Principal != nil {
					attrs = append(attrs, slog.String("principal", req.Principal.ID), slog.String("role", req.Principal.Role.String()))
				}
				m.Logger.Warn("rbac denied request", attrs...)
			}
			httpx.RespondError(w, ErrForbidden)
		})
	}
}
