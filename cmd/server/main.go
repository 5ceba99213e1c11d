package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizdesk/bizdesk-backend/internal/api"
	"github.com/bizdesk/bizdesk-backend/internal/api/handlers"
	"github.com/bizdesk/bizdesk-backend/internal/cache"
	"github.com/bizdesk/bizdesk-backend/internal/config"
	"github.com/bizdesk/bizdesk-backend/internal/database"
	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/logger"
	"github.com/bizdesk/bizdesk-backend/internal/notify"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/bizdesk/bizdesk-backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	log.Info("Starting BizDesk backend", "env", cfg.AppEnv, "port", cfg.APIPort)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	cursorRepo := repository.NewCursorRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	provider := graph.NewClient(graph.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Scopes:       cfg.OAuthScopes,
		TokenURL:     cfg.TokenEndpoint,
		BaseURL:      cfg.ProviderBaseURL,
	})

	notifier := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAPIBase)

	// Reminder dedup lives in Redis when configured so multiple instances
	// share one window; otherwise an in-process cache suffices.
	var notified cache.NotifiedCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		notified = cache.NewRedisCache(rdb, cache.DefaultTTL)
		log.Info("Using Redis reminder cache", "addr", cfg.RedisAddr)
	} else {
		notified = cache.NewMemoryCache(cache.DefaultTTL)
	}

	// Services
	secLog := logger.NewSecurityLogger()
	tokenService := services.NewTokenService(credentialRepo, provider, secLog, log)
	ticketService := services.NewTicketService(ticketRepo)
	mailSyncService := services.NewMailSyncService(
		tokenService, ticketService, provider,
		ticketRepo, clientRepo, cursorRepo,
		notifier, log, cfg.SelfDomainFilter,
	)
	reminderService := services.NewReminderService(
		tokenService, provider, credentialRepo, userRepo,
		notified, notifier, log,
	)

	scheduler := services.NewScheduler(mailSyncService, reminderService, tenantRepo, services.SchedulerConfig{
		MailSyncInterval: cfg.MailSyncInterval,
		ReminderInterval: cfg.ReminderInterval,
	}, log)
	if cfg.SchedulerEnabled {
		scheduler.Start()
	} else {
		log.Warn("Scheduler disabled; sync runs only via job trigger routes")
	}

	e := api.NewRouter(&api.RouterConfig{
		DB:        db,
		Provider:  provider,
		MailSync:  mailSyncService,
		Reminders: reminderService,
		Tickets:   ticketService,
		Scheduler: scheduler,
		Logger:    log,
		OAuth: handlers.OAuthConfig{
			ClientID:          cfg.OAuthClientID,
			Scopes:            cfg.OAuthScopes,
			RedirectURL:       cfg.OAuthRedirectURL,
			AuthorizeEndpoint: cfg.AuthorizeEndpoint,
		},
		APIKey:            cfg.APIKey,
		TriggerSecret:     cfg.TriggerSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		AppEnv:            cfg.AppEnv,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitBurst:    cfg.RateLimitBurst,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		if err := e.Start(addr); err != nil {
			log.Info("HTTP server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	log.Info("Server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
