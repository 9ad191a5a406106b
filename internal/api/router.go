package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/go-magiclink/internal/api/handlers"
	"github.com/hugh/go-magiclink/internal/api/middleware"
	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	Store       store.Store
	Redis       *redis.Client // optional
	Logger      *slog.Logger
	Sessions    middleware.CredentialVerifier
	SessionTTL  time.Duration
	AuthService auth.Authenticator
	UserService *users.Service
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter    middleware.Limiter
	AllowedOrigins []string
	// Development returns magic links and error details in responses.
	Development   bool
	SecureCookies bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, handlers.AuthOptions{
		SessionTTL:       cfg.SessionTTL,
		ExposeMagicLinks: cfg.Development,
		ExposeErrors:     cfg.Development,
		SecureCookies:    cfg.SecureCookies,
	}, cfg.Logger)
	userHandler := handlers.NewUserHandler(cfg.UserService, cfg.Logger, cfg.Development)

	// Ops endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Emailed links land here when PUBLIC_BASE_URL is this server.
	r.Get(magiclink.VerifyPath, authHandler.VerifyQuery)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/magic-link", authHandler.RequestMagicLink)
			r.Post("/verify", authHandler.Verify)
			r.Get("/verify", authHandler.VerifyQuery)
			r.Post("/logout", authHandler.Logout)

			r.With(middleware.Auth(cfg.Sessions)).Get("/me", authHandler.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Sessions))

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Get("/{id}", userHandler.Get)
			r.Put("/{id}", userHandler.Update)
			r.Patch("/{id}", userHandler.Update)
		})
	})

	return &Router{r}
}
