// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Store settings. DatabaseURL selects Postgres; SQLitePath selects the
	// embedded store; neither set falls back to the in-memory store.
	DatabaseURL string
	SQLitePath  string

	// Fusion defaults applied when a request leaves them unset.
	ConfidenceThreshold float64
	TemporalWindow      time.Duration
	CacheTTL            time.Duration

	// Auth settings.
	JWTSecret     string // HMAC secret for service bearer tokens.
	JWTExpiration time.Duration
	APIKey        string // Static API key accepted for token minting.

	// Rate limiting.
	FuseRatePerSecond float64
	FuseBurst         int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("TESSERA_PORT", 8080),
		ReadTimeout:         envDuration("TESSERA_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("TESSERA_WRITE_TIMEOUT", 30*time.Second),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		SQLitePath:          envStr("TESSERA_SQLITE_PATH", ""),
		ConfidenceThreshold: envFloat("TESSERA_CONFIDENCE_THRESHOLD", 0.6),
		TemporalWindow:      envDuration("TESSERA_TEMPORAL_WINDOW", 24*time.Hour),
		CacheTTL:            envDuration("TESSERA_CACHE_TTL", 7200*time.Second),
		JWTSecret:           envStr("TESSERA_JWT_SECRET", ""),
		JWTExpiration:       envDuration("TESSERA_JWT_EXPIRATION", 24*time.Hour),
		APIKey:              envStr("TESSERA_API_KEY", ""),
		FuseRatePerSecond:   envFloat("TESSERA_FUSE_RATE", 5),
		FuseBurst:           envInt("TESSERA_FUSE_BURST", 10),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "tessera"),
		LogLevel:            envStr("TESSERA_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("TESSERA_MAX_REQUEST_BODY_BYTES", 1*1024*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: TESSERA_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if c.TemporalWindow <= 0 {
		return fmt.Errorf("config: TESSERA_TEMPORAL_WINDOW must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: TESSERA_CACHE_TTL must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: TESSERA_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return fmt.Errorf("config: DATABASE_URL and TESSERA_SQLITE_PATH are mutually exclusive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
