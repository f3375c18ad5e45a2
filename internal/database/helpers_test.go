package database

import (
	"os"
	"testing"
	"time"

	"github.com/feedtrack/feedtrack/internal/config"
)

func skipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_POSTGRES") != "true" {
		t.Skip("Skipping: TEST_POSTGRES not set. Run with docker-compose up -d")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func testDBConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            5432,
		User:            getEnvOrDefault("DB_USER", "feedtrack"),
		Password:        getEnvOrDefault("DB_PASSWORD", "feedtrack_dev_password"),
		DBName:          getEnvOrDefault("DB_NAME", "feedtrack"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
	}
}
