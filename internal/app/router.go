package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-hq/atrium/internal/auth"
	"github.com/atrium-hq/atrium/internal/conference"
	"github.com/atrium-hq/atrium/internal/identity"
	"github.com/atrium-hq/atrium/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionRegistry   *auth.Registry
	AuthHandler       *auth.Handler
	IdentityHandler   *identity.Handler
	ConferenceHandler *conference.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Atrium defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(auth.SessionMiddleware(params.SessionRegistry))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// User and role management is administrator-only.
	adminOnly := auth.RequireRole(identity.RoleAdministrator)
	r.Route("/users", func(r chi.Router) {
		r.Use(adminOnly)
		params.IdentityHandler.MountUserRoutes(r)
	})
	r.Route("/roles", func(r chi.Router) {
		r.Use(adminOnly)
		params.IdentityHandler.MountRoleRoutes(r)
	})

	if params.ConferenceHandler != nil {
		r.Route("/conferences", func(r chi.Router) {
			params.ConferenceHandler.MountRoutes(r, auth.RequireRole(identity.RoleSpecialUser))
		})
	}

	return r
}
