// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// StoreBackendSQL keeps every slot in the kv_entries table.
	StoreBackendSQL = "sql"
	// StoreBackendRedis keeps every slot in Redis.
	StoreBackendRedis = "redis"
)

// Config holds runtime configuration for the studio backend.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Gemini     GeminiConfig
	ImageStore ImageStoreConfig
	Admin      AdminConfig
}

// AppConfig holds process level settings.
type AppConfig struct {
	Env          string `envconfig:"APP_ENV" default:"development"`
	Addr         string `envconfig:"APP_ADDR" default:":8080"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"sql"`

	// CORSOrigins が空の場合はすべてのオリジンを許可します。
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

// IsProduction returns true when the application runs in production.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DBConfig holds SQL connection settings.
type DBConfig struct {
	Driver         string        `envconfig:"DB_DRIVER" default:"sqlite"`
	Host           string        `envconfig:"DB_HOST" default:"localhost"`
	Port           string        `envconfig:"DB_PORT" default:"5432"`
	User           string        `envconfig:"DB_USER"`
	Password       string        `envconfig:"DB_PASSWORD"`
	Name           string        `envconfig:"DB_NAME" default:"studio"`
	SSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	SQLitePath     string        `envconfig:"SQLITE_PATH" default:"studio.db"`
	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"60s"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr          string        `envconfig:"REDIS_ADDR"`
	Password      string        `envconfig:"REDIS_PASSWORD"`
	PlansCacheTTL time.Duration `envconfig:"PLANS_CACHE_TTL" default:"5m"`
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret     string        `envconfig:"JWT_SECRET" required:"true"`
	Expiration time.Duration `envconfig:"JWT_EXPIRATION" default:"24h"`
}

// GeminiConfig holds image generation vendor settings.
type GeminiConfig struct {
	APIKey            string        `envconfig:"GEMINI_API_KEY" required:"true"`
	Model             string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-image"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"90s"`
	RateLimit         int           `envconfig:"GEMINI_RATE_LIMIT" default:"30"`
}

// ImageStoreConfig selects where generated images are kept. An empty Bucket keeps them inline as data URLs.
type ImageStoreConfig struct {
	Bucket        string `envconfig:"IMAGE_BUCKET"`
	Region        string `envconfig:"IMAGE_BUCKET_REGION" default:"us-east-1"`
	Endpoint      string `envconfig:"IMAGE_BUCKET_ENDPOINT"`
	PublicBaseURL string `envconfig:"IMAGE_PUBLIC_BASE_URL"`
}

// AdminConfig holds the seeded administrator account.
type AdminConfig struct {
	Email    string `envconfig:"ADMIN_EMAIL" default:"admin@lumina.ai"`
	Password string `envconfig:"ADMIN_PASSWORD" default:"password"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env not found; using system environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if c.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY must be provided")
	}
	switch c.App.StoreBackend {
	case StoreBackendSQL:
	case StoreBackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.App.StoreBackend)
	}
	if c.Gemini.GenerationTimeout <= 0 {
		return errors.New("GENERATION_TIMEOUT must be positive")
	}
	if c.ImageStore.Bucket != "" && c.ImageStore.PublicBaseURL == "" {
		return errors.New("IMAGE_PUBLIC_BASE_URL is required when IMAGE_BUCKET is set")
	}
	return nil
}
