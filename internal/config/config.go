package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SOPHIA server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Backend   BackendConfig
	Tenant    TenantConfig
	Retrieval RetrievalConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	CORSOrigins     []string
	RateLimitPerMin int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL          string
	AuthCacheTTL time.Duration
}

// BackendConfig points at the TxDxAI platform API.
type BackendConfig struct {
	URL           string
	AuthTimeout   time.Duration
	TicketTimeout time.Duration
	AuditTimeout  time.Duration
}

type TenantConfig struct {
	CacheTTL time.Duration
}

type RetrievalConfig struct {
	SearchTimeout    time.Duration
	ContextMaxTokens int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("SOPHIA_PORT", 5001),
			Env:             envString("SOPHIA_ENV", "development"),
			CORSOrigins:     envList("CORS_ORIGINS", []string{"*"}),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			AuthCacheTTL: envDuration("AUTH_CACHE_TTL", 55*time.Minute),
		},
		Backend: BackendConfig{
			URL:           strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
			AuthTimeout:   envDuration("AUTH_TIMEOUT", 10*time.Second),
			TicketTimeout: envDuration("TICKET_TIMEOUT", 30*time.Second),
			AuditTimeout:  envDuration("AUDIT_TIMEOUT", 5*time.Second),
		},
		Tenant: TenantConfig{
			CacheTTL: envDuration("TENANT_CACHE_TTL", time.Hour),
		},
		Retrieval: RetrievalConfig{
			SearchTimeout:    envDuration("SEARCH_TIMEOUT", 10*time.Second),
			ContextMaxTokens: envInt("CONTEXT_MAX_TOKENS", 1500),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Backend.URL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("BACKEND_URL must start with http:// or https://, got %q", c.Backend.URL)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SOPHIA_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", c.Server.RateLimitPerMin)
	}
	if c.Retrieval.ContextMaxTokens <= 0 {
		return fmt.Errorf("CONTEXT_MAX_TOKENS must be positive, got %d", c.Retrieval.ContextMaxTokens)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
