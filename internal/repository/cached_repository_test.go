package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feedtrack/feedtrack/internal/cache"
	"github.com/feedtrack/feedtrack/internal/models"
)

// MockFeedbackRepository is a mock implementation of FeedbackRepository.
type MockFeedbackRepository struct {
	mock.Mock
}

func (m *MockFeedbackRepository) Create(ctx context.Context, create *models.FeedbackCreate) (*models.Feedback, error) {
	args := m.Called(ctx, create)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) GetLatestByStudent(ctx context.Context, studentID int64) (*models.Feedback, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error) {
	args := m.Called(ctx, course, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) Delete(ctx context.Context, id string) (*models.Feedback, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockFeedbackCache is a mock implementation of cache.FeedbackCacher.
type MockFeedbackCache struct {
	mock.Mock
}

func (m *MockFeedbackCache) GetLatest(ctx context.Context, studentID int64) (*models.Feedback, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockFeedbackCache) SetLatest(ctx context.Context, entry *models.Feedback) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockFeedbackCache) FillLatest(ctx context.Context, entry *models.Feedback) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockFeedbackCache) Invalidate(ctx context.Context, studentID int64) error {
	return m.Called(ctx, studentID).Error(0)
}

func (m *MockFeedbackCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func sampleFeedback() *models.Feedback {
	return &models.Feedback{
		ID:        "0b8f3c2e-4d5a-4c1b-9e7f-2a6d8c9b1e3f",
		StudentID: 12345,
		Course:    "CS101",
		Text:      "Great course!",
		CreatedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCachedFeedbackRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("write-through on success", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		create := &models.FeedbackCreate{StudentID: 12345, Course: "CS101", Text: "Great course!"}
		entry := sampleFeedback()

		repo.On("Create", ctx, create).Return(entry, nil)
		fc.On("SetLatest", ctx, entry).Return(nil)

		got, err := NewCachedFeedbackRepository(repo, fc).Create(ctx, create)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		repo.AssertExpectations(t)
		fc.AssertExpectations(t)
	})

	t.Run("cache failure is ignored", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		entry := sampleFeedback()

		repo.On("Create", ctx, mock.Anything).Return(entry, nil)
		fc.On("SetLatest", ctx, entry).Return(errors.New("redis down"))

		got, err := NewCachedFeedbackRepository(repo, fc).Create(ctx, &models.FeedbackCreate{})
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	})

	t.Run("store failure skips cache", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)

		repo.On("Create", ctx, mock.Anything).Return(nil, models.ErrEmptyFeedback)

		_, err := NewCachedFeedbackRepository(repo, fc).Create(ctx, &models.FeedbackCreate{})
		assert.ErrorIs(t, err, models.ErrEmptyFeedback)
		fc.AssertNotCalled(t, "SetLatest", mock.Anything, mock.Anything)
	})
}

func TestCachedFeedbackRepository_GetLatestByStudent(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips store", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		entry := sampleFeedback()

		fc.On("GetLatest", ctx, int64(12345)).Return(entry, nil)

		got, err := NewCachedFeedbackRepository(repo, fc).GetLatestByStudent(ctx, 12345)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		repo.AssertNotCalled(t, "GetLatestByStudent", mock.Anything, mock.Anything)
	})

	t.Run("cache miss falls back and populates", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		entry := sampleFeedback()

		fc.On("GetLatest", ctx, int64(12345)).Return(nil, cache.ErrCacheMiss)
		repo.On("GetLatestByStudent", ctx, int64(12345)).Return(entry, nil)
		fc.On("FillLatest", ctx, entry).Return(nil)

		got, err := NewCachedFeedbackRepository(repo, fc).GetLatestByStudent(ctx, 12345)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		fc.AssertExpectations(t)
	})

	t.Run("not found is propagated", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)

		fc.On("GetLatest", ctx, int64(7)).Return(nil, errors.New("redis timeout"))
		repo.On("GetLatestByStudent", ctx, int64(7)).Return(nil, models.ErrFeedbackNotFound)

		_, err := NewCachedFeedbackRepository(repo, fc).GetLatestByStudent(ctx, 7)
		assert.ErrorIs(t, err, models.ErrFeedbackNotFound)
		fc.AssertNotCalled(t, "FillLatest", mock.Anything, mock.Anything)
	})
}

func TestCachedFeedbackRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates student entry", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		entry := sampleFeedback()

		repo.On("Delete", ctx, entry.ID).Return(entry, nil)
		fc.On("Invalidate", ctx, int64(12345)).Return(nil)

		got, err := NewCachedFeedbackRepository(repo, fc).Delete(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)
		fc.AssertExpectations(t)
	})

	t.Run("missing entry", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)

		repo.On("Delete", ctx, "nope").Return(nil, models.ErrFeedbackNotFound)

		_, err := NewCachedFeedbackRepository(repo, fc).Delete(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrFeedbackNotFound)
		fc.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})
}

func TestCachedFeedbackRepository_PassThrough(t *testing.T) {
	ctx := context.Background()
	repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
	entry := sampleFeedback()

	repo.On("GetByID", ctx, entry.ID).Return(entry, nil)
	repo.On("ListByCourse", ctx, "CS101", 10).Return([]*models.Feedback{entry}, nil)

	cached := NewCachedFeedbackRepository(repo, fc)

	got, err := cached.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	list, err := cached.ListByCourse(ctx, "CS101", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCachedFeedbackRepository_HealthCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("both healthy", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		fc.On("Ping", ctx).Return(nil)
		repo.On("HealthCheck", ctx).Return(nil)

		assert.NoError(t, NewCachedFeedbackRepository(repo, fc).HealthCheck(ctx))
	})

	t.Run("cache unhealthy", func(t *testing.T) {
		repo, fc := new(MockFeedbackRepository), new(MockFeedbackCache)
		fc.On("Ping", ctx).Return(errors.New("redis down"))

		assert.Error(t, NewCachedFeedbackRepository(repo, fc).HealthCheck(ctx))
		repo.AssertNotCalled(t, "HealthCheck", mock.Anything)
	})
}

// mapCache is an in-process cache.Cache so FeedbackCache runs unmocked.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return val, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapCache) Ping(context.Context) error { return nil }

func (m *mapCache) Close() error { return nil }

// stallingRepository holds GetLatestByStudent after its store read until resume is closed.
type stallingRepository struct {
	FeedbackRepository
	read   chan struct{}
	resume chan struct{}
}

func (r *stallingRepository) GetLatestByStudent(ctx context.Context, studentID int64) (*models.Feedback, error) {
	entry, err := r.FeedbackRepository.GetLatestByStudent(ctx, studentID)
	close(r.read)
	<-r.resume
	return entry, err
}

func TestCachedFeedbackRepository_ReadThroughDoesNotOverwriteNewerCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeedbackRepository()

	_, err := store.Create(ctx, &models.FeedbackCreate{StudentID: 12345, Course: "CS101", Text: "Old Feedback"})
	require.NoError(t, err)

	stalling := &stallingRepository{
		FeedbackRepository: store,
		read:               make(chan struct{}),
		resume:             make(chan struct{}),
	}
	cached := NewCachedFeedbackRepository(stalling, cache.NewFeedbackCache(newMapCache(), "", time.Minute))

	type result struct {
		entry *models.Feedback
		err   error
	}
	done := make(chan result, 1)
	go func() {
		entry, err := cached.GetLatestByStudent(ctx, 12345)
		done <- result{entry, err}
	}()

	<-stalling.read
	created, err := cached.Create(ctx, &models.FeedbackCreate{StudentID: 12345, Course: "CS101", Text: "Fixed Feedback"})
	require.NoError(t, err)
	close(stalling.resume)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Equal(t, "Old Feedback", stale.entry.Text)

	// The cache now answers without touching the stalled store path.
	got, err := cached.GetLatestByStudent(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Fixed Feedback", got.Text)
}
