package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/caltrack/caltrack/internal/audit"
	"github.com/caltrack/caltrack/internal/auth"
	"github.com/caltrack/caltrack/internal/meals"
	"github.com/caltrack/caltrack/internal/observability"
	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
	"github.com/caltrack/caltrack/internal/users"
	"github.com/caltrack/caltrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator *auth.Authenticator
	AuthHandler   *auth.Handler
	UsersHandler  *users.Handler
	MealsHandler  *meals.Handler
	JobHandler    *jobs.Handler
	AuditHandler  *audit.Handler
	Metrics       *observability.Metrics
	// Declarations receives the endpoint allow-lists; a fresh table is used when nil.
	Declarations *rbac.Declarations
	// RequestLogging enables chi's per-request access log.
	RequestLogging bool
}

// NewRouter constructs the chi.Router with the API routes. Every restricted
// endpoint is declared while mounting; a duplicate or invalid declaration
// fails construction.
func NewRouter(params RouterParams) (http.Handler, error) {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.RequestLogging {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	declarations := params.Declarations
	if declarations == nil {
		declarations = rbac.NewDeclarations()
	}
	guard := rbac.Middleware{Declarations: declarations, Logger: params.Logger}
	if params.Metrics != nil {
		guard.Recorder = params.Metrics
	}

	var mountErr error
	mount := func(router chi.Router, prefix string, routes []rbac.Route) {
		if mountErr != nil {
			return
		}
		mountErr = guard.Mount(router, prefix, routes)
	}

	r.Route("/api", func(api chi.Router) {
		var guest []rbac.Route
		if params.AuthHandler != nil {
			guest = append(guest, params.AuthHandler.Routes()...)
		}
		if params.UsersHandler != nil {
			guest = append(guest, params.UsersHandler.GuestRoutes()...)
		}
		mount(api, "/api", guest)

		api.Group(func(protected chi.Router) {
			protected.Use(params.Authenticator.Middleware)

			var userRoutes []rbac.Route
			if params.UsersHandler != nil {
				userRoutes = append(userRoutes, params.UsersHandler.Routes()...)
			}
			if params.MealsHandler != nil {
				userRoutes = append(userRoutes, params.MealsHandler.Routes()...)
			}
			if len(userRoutes) > 0 {
				protected.Route("/users", func(ur chi.Router) {
					mount(ur, "/api/users", userRoutes)
				})
			}
			if params.JobHandler != nil {
				protected.Route("/jobs", func(jr chi.Router) {
					mount(jr, "/api/jobs", params.JobHandler.Routes())
				})
			}
			if params.AuditHandler != nil {
				protected.Route("/audit", func(ar chi.Router) {
					mount(ar, "/api/audit", params.AuditHandler.Routes())
				})
			}
		})
	})
	if mountErr != nil {
		return nil, mountErr
	}
	return r, nil
}
