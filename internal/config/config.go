// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported values for STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Rate     RateLimitConfig
	Feedback FeedbackConfig
	Checks   ChecksConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IsDevelopment returns true if the app is running in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}

// IsProduction returns true if the app is running in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects the feedback storage backend.
type StoreConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// RateLimitConfig holds submission rate limiting configuration.
type RateLimitConfig struct {
	Enabled    bool
	Requests   int
	Window     time.Duration
	TrustProxy bool
}

// FeedbackConfig holds feedback submission limits.
type FeedbackConfig struct {
	MaxLength      int
	CacheTTL       time.Duration
	BlockedPhrases []string
}

// ChecksConfig holds defaults for the feedback check suite.
type ChecksConfig struct {
	LatencyDelay time.Duration
	LatencyBound time.Duration
	MinGoVersion string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	// App config
	cfg.App.Env = getEnvOrDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Server config
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")

	port, err := getEnvAsInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = port

	readTimeout, err := getEnvAsDuration("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	cfg.Server.ReadTimeout = readTimeout

	writeTimeout, err := getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	cfg.Server.WriteTimeout = writeTimeout

	shutdownTimeout, err := getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.Server.ShutdownTimeout = shutdownTimeout
	cfg.Server.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"})

	// Store selection
	cfg.Store.Driver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMemory))
	switch cfg.Store.Driver {
	case StoreMemory, StorePostgres, StoreMongo:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.Store.Driver)
	}

	// Database config
	cfg.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	dbPort, err := getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort
	cfg.Database.User = getEnvOrDefault("DB_USER", "feedtrack")
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	cfg.Database.DBName = getEnvOrDefault("DB_NAME", "feedtrack")
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	maxOpenConns, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	cfg.Database.MaxOpenConns = maxOpenConns

	maxIdleConns, err := getEnvAsInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.Database.MaxIdleConns = maxIdleConns

	connMaxLifetime, err := getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	cfg.Database.ConnMaxLifetime = connMaxLifetime

	// Mongo config
	cfg.Mongo.URI = getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017")
	cfg.Mongo.Database = getEnvOrDefault("MONGODB_DATABASE", "feedtrack")
	cfg.Mongo.Collection = getEnvOrDefault("MONGODB_COLLECTION", "feedback")
	mongoTimeout, err := getEnvAsDuration("MONGODB_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MONGODB_TIMEOUT: %w", err)
	}
	cfg.Mongo.Timeout = mongoTimeout

	// Redis config
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", "")
	redisPort, err := getEnvAsInt("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Port = redisPort
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB
	redisPoolSize, err := getEnvAsInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	cfg.Redis.PoolSize = redisPoolSize

	// Rate limiting of submissions
	rateEnabled, err := getEnvAsBool("RATE_LIMIT_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %w", err)
	}
	cfg.Rate.Enabled = rateEnabled
	rateRequests, err := getEnvAsInt("RATE_LIMIT_REQUESTS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
	}
	cfg.Rate.Requests = rateRequests
	rateWindow, err := getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}
	cfg.Rate.Window = rateWindow
	trustProxy, err := getEnvAsBool("TRUST_PROXY", false)
	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_PROXY: %w", err)
	}
	cfg.Rate.TrustProxy = trustProxy

	// Feedback limits
	maxLength, err := getEnvAsInt("FEEDBACK_MAX_LENGTH", 2000)
	if err != nil {
		return nil, fmt.Errorf("invalid FEEDBACK_MAX_LENGTH: %w", err)
	}
	cfg.Feedback.MaxLength = maxLength

	cacheTTL, err := getEnvAsDuration("FEEDBACK_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid FEEDBACK_CACHE_TTL: %w", err)
	}
	cfg.Feedback.CacheTTL = cacheTTL
	cfg.Feedback.BlockedPhrases = getEnvAsList("FEEDBACK_BLOCKED_PHRASES", nil)

	checks, err := LoadChecks()
	if err != nil {
		return nil, err
	}
	cfg.Checks = checks

	return cfg, nil
}

// LoadChecks reads only the CHECK_* variables, so the check runner does not
// depend on server, store or cache settings.
func LoadChecks() (ChecksConfig, error) {
	var checks ChecksConfig

	delay, err := getEnvAsDuration("CHECK_LATENCY_DELAY", 100*time.Millisecond)
	if err != nil {
		return checks, fmt.Errorf("invalid CHECK_LATENCY_DELAY: %w", err)
	}
	checks.LatencyDelay = delay

	bound, err := getEnvAsDuration("CHECK_LATENCY_BOUND", 500*time.Millisecond)
	if err != nil {
		return checks, fmt.Errorf("invalid CHECK_LATENCY_BOUND: %w", err)
	}
	checks.LatencyBound = bound
	checks.MinGoVersion = getEnvOrDefault("CHECK_MIN_GO_VERSION", "go1.21")

	return checks, nil
}

// DatabaseEnabled returns true if PostgreSQL is the selected store and credentials are set.
func (c *Config) DatabaseEnabled() bool {
	return c.Store.Driver == StorePostgres && c.Database.Host != "" && c.Database.Password != ""
}

// MongoEnabled returns true if MongoDB is the selected store.
func (c *Config) MongoEnabled() bool {
	return c.Store.Driver == StoreMongo && c.Mongo.URI != ""
}

// RedisEnabled returns true if Redis configuration is provided.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// getEnvAsBool returns the environment variable as a boolean.
func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(valueStr)
}

// getEnvAsDuration returns the environment variable as a duration.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// getEnvAsList splits a comma-separated environment variable.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
