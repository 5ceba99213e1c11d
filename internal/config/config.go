package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// Provider OAuth (mailbox + calendar)
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTenant       string
	OAuthScopes       string
	OAuthRedirectURL  string
	// ProviderBaseURL, TokenEndpoint and AuthorizeEndpoint are overridable so
	// tests can point the client at a local server.
	ProviderBaseURL   string
	TokenEndpoint     string
	AuthorizeEndpoint string

	// API auth
	APIKey         string
	AllowedOrigins string

	// Notifications
	TelegramBotToken string
	TelegramAPIBase  string

	// Jobs
	TriggerSecret    string
	MailSyncInterval time.Duration
	ReminderInterval time.Duration
	SchedulerEnabled bool

	// Ingestion policy
	SelfDomainFilter bool

	// Reminder dedup cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel string

	AppEnv string

	// Rate limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// API_PORT (default: 8080)
	port, err := intEnv("API_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.APIPort = port

	// Provider OAuth settings. The client id/secret pair is required as soon
	// as any mailbox or calendar is connected, but the server can boot
	// without them (sync runs then report "not connected").
	cfg.OAuthClientID = os.Getenv("OAUTH_CLIENT_ID")
	cfg.OAuthClientSecret = os.Getenv("OAUTH_CLIENT_SECRET")
	cfg.OAuthTenant = envDefault("OAUTH_TENANT", "common")
	cfg.OAuthScopes = envDefault("OAUTH_SCOPES",
		"offline_access Mail.Read Mail.ReadWrite Calendars.Read User.Read")
	cfg.OAuthRedirectURL = os.Getenv("OAUTH_REDIRECT_URL")

	cfg.ProviderBaseURL = envDefault("PROVIDER_BASE_URL", "https://graph.microsoft.com/v1.0")
	cfg.TokenEndpoint = os.Getenv("TOKEN_ENDPOINT")
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = fmt.Sprintf(
			"https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.OAuthTenant)
	}

	cfg.AuthorizeEndpoint = os.Getenv("AUTHORIZE_ENDPOINT")
	if cfg.AuthorizeEndpoint == "" {
		cfg.AuthorizeEndpoint = fmt.Sprintf(
			"https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", cfg.OAuthTenant)
	}

	// API_KEY protects the agent-facing surface; ALLOWED_ORIGINS feeds CORS.
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramAPIBase = envDefault("TELEGRAM_API_BASE", "https://api.telegram.org")

	// TRIGGER_SECRET protects the job-trigger endpoints when an external cron
	// calls them. Empty disables the check (development only).
	cfg.TriggerSecret = os.Getenv("TRIGGER_SECRET")

	// MAIL_SYNC_INTERVAL (default: 5m)
	mailInterval, err := durationEnv("MAIL_SYNC_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.MailSyncInterval = mailInterval

	// REMINDER_INTERVAL (default: 5m)
	reminderInterval, err := durationEnv("REMINDER_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ReminderInterval = reminderInterval

	// SCHEDULER_ENABLED (default: true). Disable when an external cron drives
	// the trigger endpoints instead.
	schedulerEnabled, err := boolEnv("SCHEDULER_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.SchedulerEnabled = schedulerEnabled

	// SELF_DOMAIN_FILTER (default: true). Policy switch for skipping inbound
	// mail whose sender shares the tenant's own mailbox domain.
	selfFilter, err := boolEnv("SELF_DOMAIN_FILTER", true)
	if err != nil {
		return nil, err
	}
	cfg.SelfDomainFilter = selfFilter

	// REDIS_ADDR (optional). When set, the reminder dedup cache is kept in
	// Redis instead of process memory.
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisDB = redisDB

	cfg.LogLevel = envDefault("LOG_LEVEL", "info")
	cfg.AppEnv = envDefault("APP_ENV", "development")

	// RATE_LIMIT_REQUESTS (default: 10)
	rps := envDefault("RATE_LIMIT_REQUESTS", "10")
	parsedRPS, err := strconv.ParseFloat(rps, 64)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be a valid number: %w", err)
	}
	cfg.RateLimitRequests = parsedRPS

	burst, err := intEnv("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = burst

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.TriggerSecret == "" {
		return fmt.Errorf("TRIGGER_SECRET is required in production")
	}

	return nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return parsed, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration (e.g. 5m): %w", key, err)
	}
	return parsed, nil
}
