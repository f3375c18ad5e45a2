// Package cache handles Redis caching operations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/models"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching operations.
type Cache interface {
	// Get retrieves a value from the cache.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores a value only when the key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache is healthy.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client.
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores a value in the cache with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// SetNX stores a value only when the key does not exist yet.
func (c *RedisCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx failed: %w", err)
	}
	return ok, nil
}

// Delete removes a value from the cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping checks if the cache is healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the cache connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// FeedbackCacher caches the latest feedback entry per student.
type FeedbackCacher interface {
	GetLatest(ctx context.Context, studentID int64) (*models.Feedback, error)
	SetLatest(ctx context.Context, entry *models.Feedback) error
	FillLatest(ctx context.Context, entry *models.Feedback) error
	Invalidate(ctx context.Context, studentID int64) error
	Ping(ctx context.Context) error
}

var _ FeedbackCacher = (*FeedbackCache)(nil)

// FeedbackCache stores feedback entries as JSON under "<prefix><student id>".
type FeedbackCache struct {
	cache     Cache
	keyPrefix string
	ttl       time.Duration
}

// NewFeedbackCache creates a feedback cache on top of a generic Cache.
func NewFeedbackCache(cache Cache, keyPrefix string, ttl time.Duration) *FeedbackCache {
	if keyPrefix == "" {
		keyPrefix = "feedback:student:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FeedbackCache{
		cache:     cache,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// GetLatest returns the cached latest entry for a student or ErrCacheMiss.
func (c *FeedbackCache) GetLatest(ctx context.Context, studentID int64) (*models.Feedback, error) {
	data, err := c.cache.Get(ctx, c.key(studentID))
	if err != nil {
		return nil, err
	}

	var entry models.Feedback
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = c.cache.Delete(ctx, c.key(studentID))
		return nil, fmt.Errorf("failed to unmarshal cached feedback: %w", err)
	}
	return &entry, nil
}

// SetLatest caches entry as the latest for its student.
func (c *FeedbackCache) SetLatest(ctx context.Context, entry *models.Feedback) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	return c.cache.Set(ctx, c.key(entry.StudentID), data, c.ttl)
}

// FillLatest caches entry only when nothing is cached for its student yet.
// Read paths use it so a value read before a concurrent SetLatest cannot
// replace the newer one.
func (c *FeedbackCache) FillLatest(ctx context.Context, entry *models.Feedback) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	_, err = c.cache.SetNX(ctx, c.key(entry.StudentID), data, c.ttl)
	return err
}

// Invalidate drops the cached entry for a student.
func (c *FeedbackCache) Invalidate(ctx context.Context, studentID int64) error {
	return c.cache.Delete(ctx, c.key(studentID))
}

// Ping checks if the cache is healthy.
func (c *FeedbackCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}

func (c *FeedbackCache) key(studentID int64) string {
	return c.keyPrefix + strconv.FormatInt(studentID, 10)
}
