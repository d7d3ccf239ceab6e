package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// HTTP
	Port        string
	RateLimit   int
	RateBurst   int
	CacheTTL    time.Duration
	CacheSize   int
	Environment string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Wizard sessions
	WizardTTL time.Duration

	// AMQP intake
	AMQPURL          string
	AMQPExchange     string
	AMQPIntakeQueue  string
	AMQPEventsQueue  string
	AMQPPrefetch     int
	PublishEnabled   bool
	WorkerConcurrent int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		RateLimit:   getEnvInt("RATE_LIMIT_RPS", 10),
		RateBurst:   getEnvInt("RATE_LIMIT_BURST", 20),
		CacheTTL:    getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheSize:   getEnvInt("CACHE_SIZE", 256),
		Environment: getEnv("ENVIRONMENT", "development"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "data/finance.db"),

		WizardTTL: getEnvDuration("WIZARD_TTL", 10*time.Minute),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "finance"),
		AMQPIntakeQueue:  getEnv("AMQP_INTAKE_QUEUE", "finance.candidates"),
		AMQPEventsQueue:  getEnv("AMQP_EVENTS_QUEUE", "finance.events"),
		AMQPPrefetch:     getEnvInt("AMQP_PREFETCH", 8),
		PublishEnabled:   getEnvBool("PUBLISH_EVENTS", false),
		WorkerConcurrent: getEnvInt("WORKER_CONCURRENCY", 4),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric: %w", err)
	}
	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLITE_DB_PATH must not be empty when DATA_BACKEND=sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("DATA_BACKEND must be sqlite or memory, got %q", c.DataBackend)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.RateBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must not be negative")
	}
	if c.WorkerConcurrent <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive")
	}
	if c.WizardTTL <= 0 {
		return fmt.Errorf("WIZARD_TTL must be positive")
	}
	if c.PublishEnabled && c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL must be set when PUBLISH_EVENTS=true")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
