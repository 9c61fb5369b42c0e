package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-hr/meridian-hr/internal/auth"
	"github.com/meridian-hr/meridian-hr/internal/authz"
	"github.com/meridian-hr/meridian-hr/internal/employee"
	"github.com/meridian-hr/meridian-hr/internal/observability"
	"github.com/meridian-hr/meridian-hr/internal/payroll"
	"github.com/meridian-hr/meridian-hr/internal/rbac"
	"github.com/meridian-hr/meridian-hr/internal/users"
)

// RouterParams groups dependencies for building the HTTP router. Each
// binary fills only the handlers it serves; nil handlers are skipped.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Guard  authz.Middleware

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	GraphHandler    *rbac.Handler
	EmployeeHandler *employee.Handler
	PayrollHandler  *payroll.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AuthHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
			if params.UsersHandler != nil {
				params.UsersHandler.MountSignUp(r)
			}
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Authenticate)
		if params.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				params.UsersHandler.MountRoutes(r)
				if params.GraphHandler != nil {
					params.GraphHandler.MountUserRoutes(r)
				}
			})
		}
		if params.GraphHandler != nil {
			params.GraphHandler.MountRoutes(r)
		}
		if params.EmployeeHandler != nil {
			params.EmployeeHandler.MountRoutes(r)
		}
		if params.PayrollHandler != nil {
			params.PayrollHandler.MountRoutes(r)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
