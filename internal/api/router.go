package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/teambuilder-be/internal/api/handlers"
	"github.com/isdelr/teambuilder-be/internal/auth"
	"github.com/isdelr/teambuilder-be/internal/metrics"
	"github.com/isdelr/teambuilder-be/internal/services"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	DB          handlers.Pinger
	Users       services.UserServiceProvider
	Teams       services.TeamServiceProvider
	Sessions    *auth.Manager
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	homeHandler := handlers.NewHomeHandler(deps.DB, deps.Sessions)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Teams, deps.Sessions, deps.Metrics)
	teamHandler, err := handlers.NewTeamHandler(deps.Teams, deps.Sessions, deps.Metrics)
	if err != nil {
		return nil, err
	}

	with := deps.Sessions.Handler

	r.Get("/", with(homeHandler.Home))
	r.Get("/healthz", homeHandler.Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/signup", with(userHandler.SignupForm))
	r.Post("/signup", with(userHandler.Signup))
	r.Get("/login", with(userHandler.LoginForm))
	r.Post("/login", with(userHandler.Login))
	r.Get("/logout", with(userHandler.Logout))

	r.Route("/user/{id:[0-9]+}", func(r chi.Router) {
		r.Get("/", with(userHandler.Profile))
		r.Get("/changepassword", with(userHandler.ChangePasswordForm))
		r.Post("/changepassword", with(userHandler.ChangePassword))
		r.Get("/delete", with(userHandler.Delete))
	})

	r.Route("/teams", func(r chi.Router) {
		r.Get("/new", with(teamHandler.NewTeamForm))
		r.Post("/new", with(teamHandler.Create))
		r.Get("/{id:[0-9]+}/delete", with(teamHandler.Delete))
	})

	return r, nil
}
