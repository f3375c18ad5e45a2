// Package database provides PostgreSQL connectivity and schema migrations.
package database

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feedtrack/feedtrack/internal/config"
)

// Pool wraps pgxpool.Pool with health and statistics helpers.
type Pool struct {
	*pgxpool.Pool
}

// Stats represents pool statistics.
type Stats struct {
	MaxConns      int32
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	AcquireCount  int64
}

// NewPool creates a new database connection pool and verifies connectivity.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	poolConfig, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// BuildDSN constructs a PostgreSQL connection URL. Credentials are escaped.
func BuildDSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.DBName,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// buildPoolConfig parses the DSN and applies pool sizing. MinConns never
// exceeds MaxConns.
func buildPoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = clampConns(cfg.MaxOpenConns, 10)
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = min(clampConns(cfg.MaxIdleConns, 0), poolConfig.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	return poolConfig, nil
}

// clampConns keeps a connection count within pgxpool's sensible range.
func clampConns(n int, fallback int32) int32 {
	if n <= 0 || n > 1000 {
		return fallback
	}
	return int32(n)
}

// Stats returns pool statistics.
func (p *Pool) Stats() *Stats {
	s := p.Pool.Stat()
	return &Stats{
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		AcquireCount:  s.AcquireCount(),
	}
}

// HealthCheck performs a database health check.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.Ping(ctx)
}
