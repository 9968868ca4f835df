package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Medalyze server.
type Config struct {
	Server    ServerConfig
	Analysis  AnalysisConfig
	Session   SessionConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	MaxUploadBytes int64
}

// AnalysisConfig describes the remote analysis service.
type AnalysisConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Concurrency int
}

type SessionConfig struct {
	TTL time.Duration
}

// RedisConfig is optional; an empty URL selects the in-memory cache.
type RedisConfig struct {
	URL string
}

// DatabaseConfig is optional; an empty URL disables dashboard key authentication.
type DatabaseConfig struct {
	URL               string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	AdminBootstrapKey string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// Load reads a .env file if present, then configuration from environment
// variables, and returns a validated Config. Variables already set in the
// environment win over the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("MEDALYZE_PORT", 8080),
			Env:            envString("MEDALYZE_ENV", "development"),
			MaxUploadBytes: int64(envInt("MAX_UPLOAD_MB", 64)) << 20,
		},
		Analysis: AnalysisConfig{
			BaseURL:     os.Getenv("API_BASE_URL"),
			APIKey:      os.Getenv("API_KEY"),
			Timeout:     envDurationSecs("ANALYSIS_TIMEOUT_SECS", 600*time.Second),
			Concurrency: envInt("ANALYSIS_CONCURRENCY", 1),
		},
		Session: SessionConfig{
			TTL: envDuration("SESSION_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Database: DatabaseConfig{
			URL:               os.Getenv("DATABASE_URL"),
			MaxOpenConns:      envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:      envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:   envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			AdminBootstrapKey: os.Getenv("ADMIN_BOOTSTRAP_KEY"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 30),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Analysis.BaseURL, "http://") && !strings.HasPrefix(c.Analysis.BaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must start with http:// or https://, got %q", c.Analysis.BaseURL)
	}
	if c.Analysis.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_SECS must be positive")
	}
	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY must be at least 1, got %d", c.Analysis.Concurrency)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if c.Database.AdminBootstrapKey != "" {
		if c.Database.URL == "" {
			return fmt.Errorf("ADMIN_BOOTSTRAP_KEY requires DATABASE_URL")
		}
		if len(c.Database.AdminBootstrapKey) < 16 {
			return fmt.Errorf("ADMIN_BOOTSTRAP_KEY must be at least 16 characters")
		}
	}

	return nil
}

// AuthEnabled reports whether dashboard routes require an API key.
func (c *Config) AuthEnabled() bool {
	return c.Database.URL != ""
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

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
