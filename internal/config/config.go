package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string

	TenantHeader  string
	RootDomain    string
	DefaultTenant string

	// DefaultCommissionPercent applies when a consignment carries no
	// negotiated rate. The house convention is 40%.
	DefaultCommissionPercent float64
	ReconcileSessionTTL      time.Duration
	ReservationSweepEvery    time.Duration
	DreCacheTTL              time.Duration
	InventoryCacheTTL        time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "atelie-api"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TenantHeader:  valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		RootDomain:    strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		DefaultTenant: strings.TrimSpace(k.String("TENANT_DEFAULT")),

		DefaultCommissionPercent: parseFloat(k.String("SETTLEMENT_DEFAULT_COMMISSION_PERCENT"), 40),
		ReconcileSessionTTL:      parseDuration(k.String("RECONCILE_SESSION_TTL"), "12h"),
		ReservationSweepEvery:    parseDuration(k.String("RESERVATION_SWEEP_INTERVAL"), "5m"),
		DreCacheTTL:              parseDuration(k.String("DRE_CACHE_TTL"), "2m"),
		InventoryCacheTTL:        parseDuration(k.String("INVENTORY_CACHE_TTL"), "5m"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    int(k.Int64("RATE_LIMIT_MAX")),
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 300
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.DefaultCommissionPercent < 0 || cfg.DefaultCommissionPercent > 100 {
		return nil, fmt.Errorf("SETTLEMENT_DEFAULT_COMMISSION_PERCENT out of range: %v", cfg.DefaultCommissionPercent)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(trimmed, "%g", &f); err != nil {
		return fallback
	}
	return f
}
