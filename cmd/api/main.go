// Package main is the entry point for the feedtrack API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/feedtrack/feedtrack/internal/cache"
	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/database"
	"github.com/feedtrack/feedtrack/internal/ratelimit"
	"github.com/feedtrack/feedtrack/internal/repository"
	"github.com/feedtrack/feedtrack/internal/security"
	"github.com/feedtrack/feedtrack/internal/server"
	"github.com/feedtrack/feedtrack/internal/services"
	"github.com/feedtrack/feedtrack/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment wins either way.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		opts  []server.Option
		redis *cache.RedisCache
	)
	if cfg.RedisEnabled() {
		redis, err = cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = redis.Close() }()

		fc := cache.NewFeedbackCache(redis, "", cfg.Feedback.CacheTTL)
		repo = repository.NewCachedFeedbackRepository(repo, fc)
		log.Info("redis cache enabled", "host", cfg.Redis.Host, "ttl", cfg.Feedback.CacheTTL.String())
	}

	if cfg.Rate.Enabled {
		limits := ratelimit.Config{Requests: cfg.Rate.Requests, Window: cfg.Rate.Window}
		if redis != nil {
			opts = append(opts, server.WithRateLimiter(ratelimit.NewRedisLimiter(redis.Client(), limits)))
		} else {
			opts = append(opts, server.WithRateLimiter(ratelimit.NewMemoryLimiter(limits)))
		}
	}

	sanitizer := security.NewSanitizer(security.Config{
		MaxLength:      cfg.Feedback.MaxLength,
		BlockedPhrases: cfg.Feedback.BlockedPhrases,
	})
	svc := services.NewFeedbackServiceWithSanitizer(repo, sanitizer)

	srv := server.New(cfg, log, svc, opts...)
	srv.HealthHandler().AddCheck("store", repo.HealthCheck)
	if redis != nil {
		srv.HealthHandler().AddCheck("cache", redis.Ping)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore connects the configured backend and returns a cleanup func.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.FeedbackRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		migrator, err := database.NewMigrator(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("postgres store ready", "host", cfg.Database.Host, "migrations_applied", applied)
		return repository.NewPostgresFeedbackRepository(pool), pool.Close, nil

	case config.StoreMongo:
		client, err := repository.ConnectMongo(ctx, &cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoFeedbackRepository(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		log.Info("mongo store ready", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		log.Info("memory store ready")
		return repository.NewMemoryFeedbackRepository(), func() {}, nil
	}
}
