package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envProduction = "production"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port int
	Env  string

	DatabaseURL    string
	MigrateOnStart bool

	SessionSecret string
	BaseURL       string

	GitHubClientID     string
	GitHubClientSecret string
	OAuthTimeout       time.Duration

	LoginRateLimit float64
	LoginRateBurst int

	LogLevel string
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool {
	return c.Env == envProduction
}

// Load reads configuration from environment variables and validates required fields.
func Load() (Config, error) {
	port, err := getEnvInt("PORT", 3000)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	timeout, err := getEnvDuration("OAUTH_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse OAUTH_TIMEOUT: %w", err)
	}

	rateLimit, err := getEnvFloat("LOGIN_RATE_LIMIT", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse LOGIN_RATE_LIMIT: %w", err)
	}

	rateBurst, err := getEnvInt("LOGIN_RATE_BURST", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse LOGIN_RATE_BURST: %w", err)
	}

	migrateOnStart, err := getEnvBool("MIGRATE_ON_START", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse MIGRATE_ON_START: %w", err)
	}

	cfg := Config{
		Port:               port,
		Env:                getEnv("APP_ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MigrateOnStart:     migrateOnStart,
		SessionSecret:      getEnv("NEXTAUTH_SECRET", ""),
		BaseURL:            strings.TrimRight(getEnv("NEXTAUTH_URL", "http://localhost:3000"), "/"),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		OAuthTimeout:       timeout,
		LoginRateLimit:     rateLimit,
		LoginRateBurst:     rateBurst,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.GitHubClientID == "" {
		return fmt.Errorf("GITHUB_CLIENT_ID is required")
	}
	if c.GitHubClientSecret == "" {
		return fmt.Errorf("GITHUB_CLIENT_SECRET is required")
	}
	if c.OAuthTimeout <= 0 {
		return fmt.Errorf("OAUTH_TIMEOUT must be positive")
	}
	if c.LoginRateLimit <= 0 || c.LoginRateBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_BURST must be positive")
	}
	if c.MigrateOnStart && c.DatabaseURL == "" {
		return fmt.Errorf("MIGRATE_ON_START requires DATABASE_URL")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
