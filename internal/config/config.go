package config

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Moderation modes.
const (
	ModerationToken = "token" // anonymous submissions get an emailed approval link
	ModerationQueue = "queue" // anonymous submissions wait in the moderator queue
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env      string // "development", "production", etc.
	LogLevel string // debug, info, warn, error

	// Server
	ServerAddr string
	BaseURL    string

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string // Client CA for mTLS; empty disables client verification

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string
	SQLitePath     string

	// Reference data
	ReferenceFile string // YAML with parashot and Tanach books; empty uses the embedded copy

	// Moderation
	ModerationMode  string
	AdminToken      string   // Bearer token accepted on moderator routes
	ModeratorEmails []string // OIDC identities treated as moderators

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Session
	SessionSecret string // Used for encrypting cookies (base64, 32 bytes)

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// Shared storage for sessions and rate limiting
	RedisURL           string
	RateLimitPerMinute int

	// Notifications
	NotifyWebhookURL string
	EmailAPIURL      string
	EmailAPIKey      string
	NotifyEmailTo    string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      string // "none", "tls" or "starttls"
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first in development.
func Load() *Config {
	if env := os.Getenv("ENV"); env == "" || env == "development" || env == "dev" {
		if err := godotenv.Load(); err == nil {
			log.Println("Loaded environment from .env")
		}
	}

	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ServerAddr: getEnv("SERVER_ADDR", ":3000"),
		BaseURL:    strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),

		TLSEnabled:  getEnv("TLS_ENABLED", "false") == "true",
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:   getEnv("TLS_CA_FILE", ""),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "parashasongs.db"),

		ReferenceFile: getEnv("REFERENCE_FILE", ""),

		ModerationMode:  strings.ToLower(getEnv("MODERATION_MODE", ModerationToken)),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		ModeratorEmails: splitList(getEnv("MODERATOR_EMAILS", "")),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", "http://localhost:3000/auth/callback"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ORIGINS", ""),

		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		EmailAPIURL:      getEnv("EMAIL_API_URL", ""),
		EmailAPIKey:      getEnv("EMAIL_API_KEY", ""),
		NotifyEmailTo:    getEnv("NOTIFY_EMAIL_TO", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Parasha Songs"),
		SMTPTLS:      strings.ToLower(getEnv("SMTP_TLS", "starttls")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsTokenModeration returns true if anonymous submissions receive approval tokens.
func (c *Config) IsTokenModeration() bool {
	return c.ModerationMode != ModerationQueue
}

// IsOIDCEnabled returns true if moderator login is configured.
func (c *Config) IsOIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// IsEmailAPIEnabled returns true if the transactional email API is configured.
func (c *Config) IsEmailAPIEnabled() bool {
	return c.EmailAPIURL != "" && c.EmailAPIKey != "" && c.NotifyEmailTo != ""
}

// IsSMTPEnabled returns true if direct SMTP delivery is configured.
func (c *Config) IsSMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && c.NotifyEmailTo != ""
}

// IsModerator reports whether email belongs to a configured moderator.
func (c *Config) IsModerator(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, m := range c.ModeratorEmails {
		if m == email {
			return true
		}
	}
	return false
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// NewLogger returns a structured logger, JSON outside development.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// InitLogger builds the logger and installs it as the slog default, so
// package-level slog calls share its handler and level.
func (c *Config) InitLogger() *slog.Logger {
	logger := c.NewLogger()
	slog.SetDefault(logger)
	return logger
}
