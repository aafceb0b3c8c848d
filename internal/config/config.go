package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Session   SessionConfig
	Decisions DecisionConfig
	Webhooks  WebhookConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PublicBaseURL is the externally reachable base used to build one-click
	// decision links.
	PublicBaseURL string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Mode              string // "api-key-only", "oidc-required", "dual"
	AccessTokenSecret string
	OIDC              OIDCConfig
}

// OIDCConfig holds OIDC configuration
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// SessionConfig holds session configuration
type SessionConfig struct {
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string // "Lax", "Strict", "None"
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	LoginTTL       time.Duration
}

// DecisionConfig holds one-click decision token configuration
type DecisionConfig struct {
	TokenTTL time.Duration
}

// WebhookConfig holds webhook delivery configuration
type WebhookConfig struct {
	Timeout time.Duration
}

// RateLimitConfig holds the default per-key rate limit
type RateLimitConfig struct {
	// DefaultLimit applies to API keys without their own limit. Zero means
	// unlimited.
	DefaultLimit int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "agentgate"),
			Password:        getEnv("DB_PASSWORD", "agentgate"),
			Name:            getEnv("DB_NAME", "agentgate"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Port:          getEnv("SERVER_PORT", "8080"),
			ReadTimeout:   getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:  getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Auth: AuthConfig{
			Mode:              getEnv("AUTH_MODE", "dual"),
			AccessTokenSecret: getEnv("ACCESS_TOKEN_SECRET", ""),
			OIDC: OIDCConfig{
				IssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
				ClientID:     getEnv("OIDC_CLIENT_ID", ""),
				ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),
				Scopes:       getEnvSlice("OIDC_SCOPES", []string{"openid", "profile", "email"}),
			},
		},
		Session: SessionConfig{
			CookieDomain:   getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:   getEnv("SESSION_SECURE", "true") == "true",
			CookieSameSite: getEnv("SESSION_SAMESITE", "Lax"),
			AccessTTL:      getEnvDuration("SESSION_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:     getEnvDuration("SESSION_REFRESH_TTL", 30*24*time.Hour),
			LoginTTL:       getEnvDuration("SESSION_LOGIN_TTL", 10*time.Minute),
		},
		Decisions: DecisionConfig{
			TokenTTL: getEnvDuration("DECISION_TOKEN_TTL", 24*time.Hour),
		},
		Webhooks: WebhookConfig{
			Timeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			DefaultLimit: getEnvInt("RATE_LIMIT_DEFAULT", 0),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}
