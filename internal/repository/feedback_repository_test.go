package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/database"
	"github.com/feedtrack/feedtrack/internal/models"
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

func setupTestDB(t *testing.T) *database.Pool {
	t.Helper()
	skipIfNoPostgres(t)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, &config.DatabaseConfig{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            5432,
		User:            getEnvOrDefault("DB_USER", "feedtrack"),
		Password:        getEnvOrDefault("DB_PASSWORD", "feedtrack_dev_password"),
		DBName:          getEnvOrDefault("DB_NAME", "feedtrack"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
	})
	require.NoError(t, err)

	migrator, err := database.NewMigrator(pool)
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "DELETE FROM feedback")
		pool.Close()
	})

	return pool
}

func TestPostgresFeedbackRepository(t *testing.T) {
	repo := NewPostgresFeedbackRepository(setupTestDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, &models.FeedbackCreate{StudentID: 12345, Course: "cs101", Text: "Old Feedback"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "CS101", first.Course)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := repo.Create(ctx, &models.FeedbackCreate{StudentID: 12345, Course: "CS101", Text: "Fixed Feedback"})
	require.NoError(t, err)

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Old Feedback", got.Text)

		_, err = repo.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, models.ErrFeedbackNotFound)
	})

	t.Run("latest by student", func(t *testing.T) {
		got, err := repo.GetLatestByStudent(ctx, 12345)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)

		_, err = repo.GetLatestByStudent(ctx, 1)
		assert.ErrorIs(t, err, models.ErrFeedbackNotFound)
	})

	t.Run("injection text is stored verbatim", func(t *testing.T) {
		entry, err := repo.Create(ctx, &models.FeedbackCreate{StudentID: 6, Course: "CS101", Text: "DROP TABLE feedback; --"})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "DROP TABLE feedback; --", got.Text)
	})

	t.Run("list by course", func(t *testing.T) {
		list, err := repo.ListByCourse(ctx, "CS101", 0)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("delete", func(t *testing.T) {
		removed, err := repo.Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, removed.ID)

		_, err = repo.Delete(ctx, first.ID)
		assert.ErrorIs(t, err, models.ErrFeedbackNotFound)
	})

	assert.NoError(t, repo.HealthCheck(ctx))
}
