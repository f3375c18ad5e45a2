package repository

import (
	"context"
	"errors"

	"github.com/feedtrack/feedtrack/internal/cache"
	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/models"
)

// CachedFeedbackRepository wraps a FeedbackRepository with a per-student cache
// of the latest entry. Cache failures never fail a call; the backing store wins.
type CachedFeedbackRepository struct {
	repo  FeedbackRepository
	cache cache.FeedbackCacher
}

var _ FeedbackRepository = (*CachedFeedbackRepository)(nil)

// NewCachedFeedbackRepository creates a new cached feedback repository.
func NewCachedFeedbackRepository(repo FeedbackRepository, fc cache.FeedbackCacher) *CachedFeedbackRepository {
	return &CachedFeedbackRepository{repo: repo, cache: fc}
}

// Create stores the entry and makes it the cached latest for its student.
func (c *CachedFeedbackRepository) Create(ctx context.Context, create *models.FeedbackCreate) (*models.Feedback, error) {
	entry, err := c.repo.Create(ctx, create)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetLatest(ctx, entry)
	return entry, nil
}

// GetByID reads through to the backing store.
func (c *CachedFeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	return c.repo.GetByID(ctx, id)
}

// GetLatestByStudent checks the cache first, then falls back to the store.
func (c *CachedFeedbackRepository) GetLatestByStudent(ctx context.Context, studentID int64) (*models.Feedback, error) {
	cached, err := c.cache.GetLatest(ctx, studentID)
	if err == nil {
		metrics.RecordCacheHit()
		return cached, nil
	}
	if errors.Is(err, cache.ErrCacheMiss) {
		metrics.RecordCacheMiss()
	}

	entry, err := c.repo.GetLatestByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	// A Create may have cached a newer entry since the store read.
	_ = c.cache.FillLatest(ctx, entry)
	return entry, nil
}

// ListByCourse is not cached.
func (c *CachedFeedbackRepository) ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error) {
	return c.repo.ListByCourse(ctx, course, limit)
}

// Delete removes the entry and invalidates its student's cached latest.
func (c *CachedFeedbackRepository) Delete(ctx context.Context, id string) (*models.Feedback, error) {
	entry, err := c.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Invalidate(ctx, entry.StudentID)
	return entry, nil
}

// HealthCheck checks both cache and store health.
func (c *CachedFeedbackRepository) HealthCheck(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		return err
	}
	return c.repo.HealthCheck(ctx)
}
