package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/metrics"
	"go-auth-service/internal/middleware"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	User       *handler.UserHandler
	Moderation *handler.ModerationHandler
	Audit      *handler.AuditHandler
	Health     *handler.HealthHandler
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.Metrics,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()

	general := middleware.NewRateLimiter(middleware.Policy{Name: "general", Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow}, m)
	auth := middleware.NewRateLimiter(middleware.Policy{Name: "auth", Max: cfg.AuthRateLimitMax, Window: cfg.AuthRateLimitWindow}, m)
	reset := middleware.NewRateLimiter(middleware.Policy{Name: "reset", Max: cfg.ResetRateLimitMax, Window: cfg.ResetRateLimitWindow}, m)

	r.Use(middleware.TrustProxy(cfg.TrustProxyHops))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", h.Health.Check)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(general.Handler)

		api.Route("/auth", func(a chi.Router) {
			a.With(auth.Handler).Post("/register", h.Auth.Register)
			a.With(auth.Handler).Post("/login", h.Auth.Login)
			a.Post("/refresh", h.Auth.Refresh)
			a.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			a.With(authMiddleware.RequireAuth).Post("/logout-all", h.Auth.LogoutAll)
			a.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			a.Post("/verify-email", h.Auth.VerifyEmail)
			a.With(reset.Handler).Post("/reset-password", h.Auth.ResetPassword)
		})

		api.With(authMiddleware.OptionalAuth).Get("/users/{username}", h.User.Profile)

		api.Route("/moderation", func(mod chi.Router) {
			mod.Use(authMiddleware.RequireAuth, middleware.RequireModerator)
			mod.Post("/users/{id}/ban", h.Moderation.Ban)
			mod.Delete("/users/{id}/ban", h.Moderation.Unban)
		})

		api.With(authMiddleware.RequireAuth, middleware.RequireAdmin).Get("/audit", h.Audit.List)
	})

	return r
}
