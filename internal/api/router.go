package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/bizdesk/bizdesk-backend/internal/api/handlers"
	"github.com/bizdesk/bizdesk-backend/internal/api/middleware"
	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/bizdesk/bizdesk-backend/internal/services"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB        *gorm.DB
	Provider  graph.Client
	MailSync  *services.MailSyncService
	Reminders *services.ReminderService
	Tickets   *services.TicketService
	Scheduler *services.Scheduler
	Logger    *slog.Logger

	OAuth handlers.OAuthConfig

	// Security configuration
	APIKey            string // API key for authentication (empty = disabled)
	TriggerSecret     string // secret guarding the job trigger routes
	AllowedOrigins    string // comma-separated CORS origins
	AppEnv            string
	RateLimitRequests float64
	RateLimitBurst    int
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware order matters: recover first so later layers are covered.
	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))
	e.Use(middleware.RateLimiter(cfg.RateLimitRequests, cfg.RateLimitBurst, cfg.Logger))
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Repositories
	tenantRepo := repository.NewTenantRepository(cfg.DB)
	userRepo := repository.NewUserRepository(cfg.DB)
	credentialRepo := repository.NewCredentialRepository(cfg.DB)
	ticketRepo := repository.NewTicketRepository(cfg.DB)

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Scheduler)
	oauthHandler := handlers.NewOAuthHandler(cfg.OAuth, cfg.Provider, credentialRepo, tenantRepo, userRepo)
	ticketHandler := handlers.NewTicketHandler(ticketRepo, cfg.Tickets)
	jobHandler := handlers.NewJobHandler(cfg.MailSync, cfg.Reminders, tenantRepo, cfg.Logger)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// API routes
	api := e.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, cfg.Logger))

	// OAuth connection routes. The callback is hit by the provider redirect
	// and carries no API key; APIKeyAuth skips it by path.
	oauth := api.Group("/oauth")
	oauth.GET("/connect", oauthHandler.Connect)
	oauth.GET("/callback", oauthHandler.Callback)
	oauth.GET("/status", oauthHandler.Status)
	oauth.DELETE("/connection", oauthHandler.Disconnect)

	// Ticket routes
	tickets := api.Group("/tickets")
	tickets.GET("", ticketHandler.List)
	tickets.GET("/:id", ticketHandler.Get)
	tickets.POST("/:id/reply", ticketHandler.Reply)
	tickets.POST("/:id/notes", ticketHandler.AddNote)
	tickets.PATCH("/:id/status", ticketHandler.ChangeStatus)

	// Job trigger routes, guarded by the trigger secret so external cron
	// callers do not need the full API key.
	jobs := api.Group("/jobs")
	jobs.Use(middleware.TriggerAuth(cfg.TriggerSecret, cfg.Logger))
	jobs.POST("/mail-sync", jobHandler.TriggerMailSync)
	jobs.POST("/reminder-sweep", jobHandler.TriggerReminderSweep)

	return e
}
