package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Meta store backends.
const (
	MetaStorePostgres = "postgres"
	MetaStoreRedis    = "redis"
	MetaStoreMemory   = "memory"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// NonceSecret keys the anti-forgery nonces and local download URL
	// signatures. Required outside development.
	NonceSecret   string
	NonceLifetime time.Duration

	// Meta store for allowances and download counts
	MetaStore   string // "postgres", "redis" or "memory"
	RedisURL    string
	RedisPrefix string

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Application base URL (for email links)
	BaseURL string

	// Storage Configuration
	StorageProvider string // "local" or "r2"
	DownloadURLTTL  time.Duration

	// Local Storage (development)
	LocalStoragePath string // Base directory for product files
	LocalStorageURL  string // Base URL the file handler is mounted on

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Admin access control
	AdminEmails []string // List of email addresses with admin access

	// Stripe webhook signing secret (whsec_...). The webhook is a no-op
	// when empty.
	StripeWebhookSecret string

	// Membership payment events
	AMQPURL         string // RabbitMQ consumer is off when empty
	AMQPExchange    string
	AMQPQueue       string
	PGNotifyEnabled bool

	// Download pack
	DownloadRateLimit int // requests per minute per member, 0 disables
	PackPluralLabel   string
	CartURL           string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		NonceSecret:   getEnv("NONCE_SECRET", ""),
		NonceLifetime: getEnvDuration("NONCE_LIFETIME", 24*time.Hour),

		MetaStore:   getEnv("META_STORE", MetaStorePostgres),
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "packs"),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@packs.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Packs"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		DownloadURLTTL:   getEnvDuration("DOWNLOAD_URL_TTL", 24*time.Hour),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 1*time.Minute),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "memberships"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "packs.period-reset"),
		PGNotifyEnabled: getEnvBool("PG_NOTIFY_ENABLED", false),

		DownloadRateLimit: getEnvInt("DOWNLOAD_RATE_LIMIT", 30),
		PackPluralLabel:   getEnv("PACK_PLURAL_LABEL", "downloads"),
		CartURL:           getEnv("CART_URL", "/cart"),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	cfg.AdminEmails = splitList(getEnv("ADMIN_EMAILS", ""), strings.ToLower)

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) validate() error {
	if c.NonceSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("NONCE_SECRET is required when ENV is %q", c.Env)
		}
		c.NonceSecret = "development-nonce-secret-do-not-use-in-production"
	}

	switch c.MetaStore {
	case MetaStorePostgres, MetaStoreMemory:
	case MetaStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when META_STORE is 'redis'")
		}
	default:
		return fmt.Errorf("META_STORE must be one of 'postgres', 'redis' or 'memory', got: %s", c.MetaStore)
	}
	if c.MetaStore == MetaStoreMemory && !c.IsDevelopment() {
		return fmt.Errorf("META_STORE 'memory' is only allowed in development")
	}

	switch c.StorageProvider {
	case "local":
	case "r2":
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	if c.DownloadURLTTL < time.Minute {
		return fmt.Errorf("DOWNLOAD_URL_TTL must be at least 1m, got: %s", c.DownloadURLTTL)
	}
	if c.NonceLifetime < 2*time.Minute {
		return fmt.Errorf("NONCE_LIFETIME must be at least 2m, got: %s", c.NonceLifetime)
	}
	if c.DownloadRateLimit < 0 {
		return fmt.Errorf("DOWNLOAD_RATE_LIMIT must not be negative, got: %d", c.DownloadRateLimit)
	}
	return nil
}

// splitList parses a comma-separated variable, dropping empty entries.
func splitList(s string, normalize func(string) string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = normalize(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
