// Package config handles application configuration loading and validation using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data modes accepted by DataConfig.Mode.
const (
	DataModeMock = "mock"
	DataModeReal = "real"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Data          DataConfig          `mapstructure:"data"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Journey       JourneyConfig       `mapstructure:"journey"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Environment     string `mapstructure:"environment"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

// DataConfig selects the persistence backend. "mock" runs on an in-memory SQLite database seeded
// with demo data, "real" connects to PostgreSQL.
type DataConfig struct {
	Mode string `mapstructure:"mode"`
	Seed bool   `mapstructure:"seed"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	Migrate         bool   `mapstructure:"migrate"`
}

// DSN returns the libpq-style connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection URL form used by the migration driver.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JourneyConfig describes the virtual route teams travel along.
type JourneyConfig struct {
	Route          string  `mapstructure:"route"`
	RouteFile      string  `mapstructure:"route_file"`
	TotalDistanceM float64 `mapstructure:"total_distance_m"` // 0 means "distance of the last waypoint"
}

// AuthConfig contains bearer token verification settings.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// StorageConfig contains S3-compatible object storage settings for avatars and media.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
}

// NotificationsConfig contains the chat webhook used to announce earned badges.
type NotificationsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
}

// SchedulerConfig contains background job settings.
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ReconcileSchedule  string `mapstructure:"reconcile_schedule"`   // cron expression
	BadgeSweepSchedule string `mapstructure:"badge_sweep_schedule"` // cron expression
	Timezone           string `mapstructure:"timezone"`
}

// CacheConfig contains leaderboard caching settings.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // seconds
}

// RateLimitConfig bounds how fast a single user may log activities.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 15)
	v.SetDefault("data.mode", DataModeMock)
	v.SetDefault("data.seed", true)
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.postgres.migrate", true)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)
	v.SetDefault("journey.route", "boston-rotterdam")
	v.SetDefault("journey.route_file", "config/routes/boston-rotterdam.yaml")
	v.SetDefault("storage.max_upload_bytes", 5<<20)
	v.SetDefault("notifications.username", "RowQuest")
	v.SetDefault("scheduler.reconcile_schedule", "0 3 * * *")
	v.SetDefault("scheduler.badge_sweep_schedule", "30 3 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("cache.ttl", 60)
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from file and environment variables.
// A missing config file is not an error when configPath is empty; defaults and env vars apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rowquest/")
	}

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// Data mode
	_ = v.BindEnv("data.mode", "DATA_MODE")
	_ = v.BindEnv("data.seed", "DATA_SEED")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.migrate", "POSTGRES_MIGRATE")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// Journey
	_ = v.BindEnv("journey.route", "JOURNEY_ROUTE")
	_ = v.BindEnv("journey.route_file", "JOURNEY_ROUTE_FILE")
	_ = v.BindEnv("journey.total_distance_m", "JOURNEY_TOTAL_DISTANCE_M")

	// Auth
	_ = v.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	_ = v.BindEnv("auth.issuer", "AUTH_ISSUER")

	// Object storage
	_ = v.BindEnv("storage.enabled", "STORAGE_ENABLED")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.region", "STORAGE_REGION")
	_ = v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	_ = v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.public_base_url", "STORAGE_PUBLIC_BASE_URL")

	// Notifications
	_ = v.BindEnv("notifications.enabled", "NOTIFICATIONS_ENABLED")
	_ = v.BindEnv("notifications.webhook_url", "NOTIFICATIONS_WEBHOOK_URL")
	_ = v.BindEnv("notifications.channel", "NOTIFICATIONS_CHANNEL")

	// Scheduler
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.reconcile_schedule", "SCHEDULER_RECONCILE_SCHEDULE")
	_ = v.BindEnv("scheduler.badge_sweep_schedule", "SCHEDULER_BADGE_SWEEP_SCHEDULE")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	// Cache and rate limiting
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("cache.ttl", "CACHE_TTL")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	c.Data.Mode = strings.ToLower(c.Data.Mode)
	switch c.Data.Mode {
	case DataModeMock:
	case DataModeReal:
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required in real data mode")
		}
		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required in real data mode")
		}
		if c.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required in real data mode")
		}
	default:
		return fmt.Errorf("data.mode must be %q or %q, got %q", DataModeMock, DataModeReal, c.Data.Mode)
	}

	if c.Journey.Route == "" {
		return fmt.Errorf("journey.route is required")
	}
	if c.Journey.TotalDistanceM < 0 {
		return fmt.Errorf("journey.total_distance_m must not be negative")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Storage.Enabled && (c.Storage.Bucket == "" || c.Storage.PublicBaseURL == "") {
		return fmt.Errorf("storage.bucket and storage.public_base_url are required when storage is enabled")
	}
	if c.Notifications.Enabled && c.Notifications.WebhookURL == "" {
		return fmt.Errorf("notifications.webhook_url is required when notifications are enabled")
	}
	if c.Cache.Enabled && c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required when cache is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}

	return nil
}

// IsMock reports whether the service runs against the seeded in-memory database.
func (c *DataConfig) IsMock() bool {
	return c.Mode == DataModeMock
}

// GetLocation returns the scheduler timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// CacheTTL returns the leaderboard cache TTL.
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}
