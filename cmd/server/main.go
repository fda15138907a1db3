package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/config"
	"ourpainthub/internal/email"
	"ourpainthub/internal/httpapi"
	"ourpainthub/internal/notifications"
	"ourpainthub/internal/service"
	"ourpainthub/internal/store/memory"
	"ourpainthub/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	var (
		b      backend
		dbPing func(context.Context) error
	)
	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, pgPool, logger); err != nil {
				logger.Error("db migrate failed", "err", err)
				os.Exit(1)
			}
		}
		b = postgresBackend(pgPool)
		dbPing = pgPool.Ping
	} else {
		logger.Warn("APP_DB_DSN not set, using in-memory store; data is lost on restart")
		b = memoryBackend(memory.New())
	}

	if cfg.AdminBootstrapEmail != "" && cfg.AdminBootstrapPassword != "" {
		if _, err := service.EnsureAdmin(ctx, b.bootstrap, logger, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword); err != nil {
			logger.Error("bootstrap admin failed", "err", err)
			os.Exit(1)
		}
	}

	svc := b.services(cfg, logger)
	if configureDelivery(ctx, cfg, logger, svc.notifications) {
		svc.friends.Notifier = svc.notifications
		svc.projects.Notifier = svc.notifications
	}

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:          logger,
		IsProd:          cfg.IsProd(),
		DBPing:          dbPing,
		Auth:            svc.auth,
		Profile:         svc.profile,
		Users:           svc.users,
		Friends:         svc.friends,
		Projects:        svc.projects,
		Content:         svc.content,
		Admin:           svc.admin,
		Notifications:   svc.notifications,
		CookieCodec:     auth.NewCookieCodec([]byte(cfg.CookieSecret)),
		Tokens:          auth.NewTokenCodec([]byte(cfg.TokenSecret)),
		CookieSecure:    cfg.CookieSecure(),
		SessionTTL:      cfg.SessionTTL,
		LoginRateLimit:  cfg.RateLimitPerMinute,
		TrustedProxies:  cfg.TrustedProxies,
		MaxProjectBytes: cfg.MaxProjectBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "db_enabled", dbPing != nil)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// configureDelivery attaches the FCM and SMTP senders that are configured and
// reports whether any of them is.
func configureDelivery(ctx context.Context, cfg config.Config, logger *slog.Logger, n *service.NotificationService) bool {
	if cfg.FCMCredentials != "" {
		sender, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentials)
		if err != nil {
			logger.Error("fcm disabled", "err", err)
		} else {
			n.Sender = sender
			logger.Info("fcm push enabled")
		}
	}
	if cfg.SMTP.Enabled() {
		mailer, err := email.NewSender(email.Settings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
		if err != nil {
			logger.Error("smtp disabled", "err", err)
		} else {
			n.Mailer = mailer
			logger.Info("smtp mail enabled", "host", cfg.SMTP.Host)
		}
	}
	return n.Sender != nil || n.Mailer != nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
