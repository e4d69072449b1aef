package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session backends selectable with SESSION_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port           string
	Deployment     string
	DeploymentFile string

	SessionBackend string
	SQLitePath     string
	DatabaseURL    string
	RedisURL       string
	SessionSecret  string
	SessionTTL     time.Duration

	RequestTimeout time.Duration
	CORSOrigins    []string

	LogLevel       string
	LogFormat      string
	TracesExporter string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:           fallback(os.Getenv("PORT"), "8080"),
		Deployment:     strings.TrimSpace(os.Getenv("PORTAL_DEPLOYMENT")),
		DeploymentFile: strings.TrimSpace(os.Getenv("PORTAL_DEPLOYMENT_FILE")),
		SessionBackend: strings.ToLower(fallback(os.Getenv("SESSION_BACKEND"), BackendSQLite)),
		SQLitePath:     fallback(os.Getenv("SESSION_SQLITE_PATH"), "portal-session.db"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		SessionSecret:  strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:     hours(os.Getenv("SESSION_TTL_HOURS"), 24*30),
		RequestTimeout: seconds(os.Getenv("REQUEST_TIMEOUT_SECONDS"), 15),
		CORSOrigins:    parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		LogLevel:       fallback(os.Getenv("LOG_LEVEL"), "info"),
		LogFormat:      fallback(os.Getenv("LOG_FORMAT"), "json"),
		TracesExporter: strings.ToLower(fallback(os.Getenv("OTEL_TRACES_EXPORTER"), "none")),
	}

	if cfg.Deployment == "" && cfg.DeploymentFile == "" {
		return Config{}, errors.New("PORTAL_DEPLOYMENT or PORTAL_DEPLOYMENT_FILE is required")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}
	switch cfg.SessionBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres session backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL is required for the redis session backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func hours(raw string, def int) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(def) * time.Hour
}

func seconds(raw string, def int) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return time.Duration(def) * time.Second
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
