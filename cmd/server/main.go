package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-magiclink/internal/api"
	"github.com/hugh/go-magiclink/internal/api/middleware"
	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/hugh/go-magiclink/internal/database"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/tasks"
	"github.com/hugh/go-magiclink/internal/users"
	"github.com/hugh/go-magiclink/pkg/config"
	"github.com/hugh/go-magiclink/pkg/crypto"
	"github.com/hugh/go-magiclink/pkg/queue"
	"github.com/hugh/go-magiclink/pkg/telemetry"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const serviceName = "magiclink-api"

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, serviceName)
	slog.SetDefault(logger)

	logger.Info("starting magic link server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"store", cfg.Store.Driver,
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	st, err := database.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	var encryptor *crypto.Encryptor
	if cfg.Encryption.QueueKey != "" {
		encryptor, err = crypto.NewEncryptor(cfg.Encryption.QueueKey)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
	} else if !cfg.Server.IsDevelopment() {
		logger.Warn("QUEUE_ENCRYPTION_KEY not set, magic links are queued in plaintext")
	}

	var (
		asynqClient *asynq.Client
		notifier    magiclink.Notifier
	)
	switch {
	case redisClient != nil:
		asynqClient = queue.NewClient(&cfg.Redis)
		notifier = tasks.NewDispatcher(asynqClient, encryptor)
	case cfg.Server.IsDevelopment():
		logger.Warn("no queue available, magic links are only logged")
		notifier = magiclink.NotifierFunc(func(ctx context.Context, d magiclink.Delivery) error {
			logger.Info("magic link", "email", d.Email, "url", d.URL, "expires_at", d.ExpiresAt)
			return nil
		})
	default:
		logger.Error("redis is required to deliver magic links outside development")
		os.Exit(1)
	}

	sessionTTL, err := auth.ParseTTL(cfg.JWT.Expiry)
	if err != nil {
		logger.Error("invalid JWT_EXPIRY", "error", err)
		os.Exit(1)
	}
	sessions, err := auth.NewSessionService(cfg.JWT.Secret, sessionTTL)
	if err != nil {
		logger.Error("failed to create session service", "error", err)
		os.Exit(1)
	}

	issuer := magiclink.NewIssuer(st, notifier, cfg.Server.PublicBaseURL, logger)
	verifier := magiclink.NewVerifier(st, logger)
	authService := auth.NewService(st, issuer, verifier, sessions)
	userService := users.NewService(st, logger)

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds, logger)
	} else {
		memLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
		defer memLimiter.Stop()
		limiter = memLimiter
	}

	router := api.NewRouter(api.RouterConfig{
		Store:          st,
		Redis:          redisClient,
		Logger:         logger,
		Sessions:       sessions,
		SessionTTL:     sessions.Expiry(),
		AuthService:    authService,
		UserService:    userService,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Development:    cfg.Server.IsDevelopment(),
		SecureCookies:  !cfg.Server.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      telemetry.Middleware(serviceName)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error("store close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
