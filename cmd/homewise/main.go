package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/config"
	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/email"
	"github.com/dukerupert/homewise/internal/images"
	"github.com/dukerupert/homewise/internal/logging"
	"github.com/dukerupert/homewise/internal/maintenance"
	"github.com/dukerupert/homewise/internal/outbox"
	"github.com/dukerupert/homewise/internal/server"
	"github.com/dukerupert/homewise/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat())

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database ready", "dialect", database.DialectOf(db))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	mailer := email.NewClient(cfg.ResendAPIKey, cfg.MailFrom, email.WithLogger(logger.With("component", "email")))
	if !mailer.Configured() {
		logger.Warn("HOMEWISE_RESEND_API_KEY not set, e-mail will only be logged")
	}

	outboxStore := store.NewOutboxStore(db)
	dispatcher := outbox.NewDispatcher(outboxStore, mailer, outbox.Config{
		Interval:    cfg.OutboxInterval,
		MaxAttempts: cfg.OutboxMaxAttempts,
		SendRetries: 2,
	}, logger.With("component", "outbox"))
	dispatcher.Start(ctx)

	tokens := auth.NewTokens(cfg.AuthSecret, cfg.OneTimeTokenTTL)
	provider := auth.NewProvider(db, tokens, auth.Config{
		SessionTTL:               cfg.SessionTTL,
		RequireEmailVerification: cfg.RequireEmailVerification,
		BaseURL:                  cfg.BaseURL,
	}, logger.With("component", "auth"))

	imageStore := images.New(images.Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		PublicURL: cfg.S3.PublicURL,
	}, logger.With("component", "images"))
	if !imageStore.Configured() {
		logger.Warn("S3 not configured, profile pictures are disabled")
	}

	srv := server.New(db, provider, imageStore, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		OnEnqueue:      dispatcher.Kick,
	}, logger)

	scheduler := maintenance.New(store.NewSessionStore(db), outboxStore, srv.RateLimiter(), maintenance.Config{}, logger.With("component", "maintenance"))
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start maintenance", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		// Websocket clients outlive Shutdown; cancelling ctx closes them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("homewise listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	scheduler.Stop()
	dispatcher.Stop()
	stop()
}
