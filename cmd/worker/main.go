package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-magiclink/internal/database"
	"github.com/hugh/go-magiclink/internal/mailer"
	"github.com/hugh/go-magiclink/internal/tasks"
	"github.com/hugh/go-magiclink/pkg/config"
	"github.com/hugh/go-magiclink/pkg/crypto"
	"github.com/hugh/go-magiclink/pkg/queue"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/joho/godotenv"
)

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

	logger := util.NewLogger(cfg.Server.Env, "magiclink-worker")
	slog.SetDefault(logger)

	logger.Info("starting magic link worker", "mail_driver", cfg.Mail.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := database.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	var m mailer.Mailer
	switch cfg.Mail.Driver {
	case config.MailSES:
		m, err = mailer.NewSESMailer(ctx, cfg.Mail.AWSRegion, cfg.Mail.From)
		if err != nil {
			logger.Error("failed to create SES mailer", "error", err)
			os.Exit(1)
		}
	default:
		m = mailer.NewLogMailer(logger)
	}

	var encryptor *crypto.Encryptor
	if cfg.Encryption.QueueKey != "" {
		encryptor, err = crypto.NewEncryptor(cfg.Encryption.QueueKey)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
	}

	srv := queue.NewServer(&cfg.Redis, 10, logger)

	handler := tasks.NewHandler(st, m, encryptor, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic purge of long-expired links
	scheduler := queue.NewScheduler(&cfg.Redis)
	purgeTask, err := tasks.NewPurgeMagicLinksTask(cfg.MagicLink.Retention())
	if err != nil {
		logger.Error("failed to build purge task", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.Register(cfg.MagicLink.PurgeCron, purgeTask); err != nil {
		logger.Error("failed to schedule purge", "cron", cfg.MagicLink.PurgeCron, "error", err)
		os.Exit(1)
	}
	if next, err := util.NextCronTime(cfg.MagicLink.PurgeCron, time.Now().UTC()); err == nil {
		logger.Info("magic link purge scheduled", "cron", cfg.MagicLink.PurgeCron, "next_run", next)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		scheduler.Shutdown()
		cancel()
	}

	<-ctx.Done()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := st.Close(closeCtx); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("worker stopped")
}
