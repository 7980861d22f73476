package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"stridelog/internal/authstate"
	"stridelog/internal/config"
	"stridelog/internal/metrics"
)

// RouterDeps bundles the collaborators the router wires together.
type RouterDeps struct {
	Gate     *Gate
	Strava   *StravaHandler
	Confirm  *ConfirmHandler
	Pages    *PageHandler
	Recorder metrics.Recorder
	Registry *prometheus.Registry
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger, deps.Recorder))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}

	// The gate runs once per page or auth request; the OAuth bridge
	// endpoints write the cookies the gate reads on the next request.
	r.Group(func(r chi.Router) {
		r.Use(deps.Gate.Middleware())

		r.Get("/api/auth/strava", deps.Strava.Initiate)
		r.Get("/api/auth/strava/callback", deps.Strava.Callback)
		r.Get("/auth/confirm", deps.Confirm.Confirm)

		// Answered from this request's own context; the shared store is an
		// in-process mirror and must never serve another client's state.
		r.Get("/api/auth/state", func(w http.ResponseWriter, r *http.Request) {
			rc := RequestContextFrom(r.Context())
			writeJSON(w, http.StatusOK, authstate.Snapshot{
				User:            rc.User,
				Profile:         rc.Profile,
				StravaConnected: rc.StravaConnected,
			})
		})

		r.Get("/", deps.Pages.Page("Stridelog"))
		r.Get("/auth/login", deps.Pages.Page("Log in"))
		r.Get("/auth/register", deps.Pages.Page("Register"))
		r.Get("/dashboard", deps.Pages.Page("Dashboard"))
		r.Get("/calendar", deps.Pages.Page("Calendar"))
		r.Get("/friends", deps.Pages.Page("Friends"))
		r.Get("/leaderboard", deps.Pages.Page("Leaderboard"))
		r.Get("/profile", deps.Pages.Page("Profile"))
		r.Get("/settings", deps.Pages.Page("Settings"))
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
