// Package repository handles feedback persistence.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/feedtrack/feedtrack/internal/database"
	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/models"
)

// DefaultListLimit caps ListByCourse when the caller passes a non-positive limit.
const DefaultListLimit = 100

// FeedbackRepository defines the interface for feedback persistence operations.
type FeedbackRepository interface {
	// Create validates and stores a new entry.
	Create(ctx context.Context, create *models.FeedbackCreate) (*models.Feedback, error)

	// GetByID retrieves an entry by its ID.
	GetByID(ctx context.Context, id string) (*models.Feedback, error)

	// GetLatestByStudent retrieves the most recent entry left by a student.
	GetLatestByStudent(ctx context.Context, studentID int64) (*models.Feedback, error)

	// ListByCourse returns entries for a course, newest first.
	ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error)

	// Delete removes an entry and returns what was removed.
	Delete(ctx context.Context, id string) (*models.Feedback, error)

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

// PostgresFeedbackRepository implements FeedbackRepository using PostgreSQL.
type PostgresFeedbackRepository struct {
	pool *database.Pool
}

// NewPostgresFeedbackRepository creates a new PostgreSQL-backed feedback repository.
func NewPostgresFeedbackRepository(pool *database.Pool) *PostgresFeedbackRepository {
	return &PostgresFeedbackRepository{pool: pool}
}

const feedbackColumns = `id::text, student_id, course, feedback, created_at`

// Create stores a new entry.
func (r *PostgresFeedbackRepository) Create(ctx context.Context, create *models.FeedbackCreate) (*models.Feedback, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}
	defer observe("create", time.Now())

	query := `
		INSERT INTO feedback (id, student_id, course, feedback)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + feedbackColumns

	entry, err := scanFeedback(r.pool.QueryRow(ctx, query, uuid.NewString(), create.StudentID, create.Course, create.Text))
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return entry, nil
}

// GetByID retrieves an entry by its ID.
func (r *PostgresFeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	if uuid.Validate(id) != nil {
		return nil, models.ErrFeedbackNotFound
	}
	defer observe("get_by_id", time.Now())

	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE id = $1`

	entry, err := scanFeedback(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to get feedback")
	}
	return entry, nil
}

// GetLatestByStudent retrieves the most recent entry left by a student.
func (r *PostgresFeedbackRepository) GetLatestByStudent(ctx context.Context, studentID int64) (*models.Feedback, error) {
	defer observe("get_latest", time.Now())

	query := `
		SELECT ` + feedbackColumns + `
		FROM feedback
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	entry, err := scanFeedback(r.pool.QueryRow(ctx, query, studentID))
	if err != nil {
		return nil, notFoundOr(err, "failed to get feedback")
	}
	return entry, nil
}

// ListByCourse returns entries for a course, newest first.
func (r *PostgresFeedbackRepository) ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	defer observe("list_by_course", time.Now())

	query := `
		SELECT ` + feedbackColumns + `
		FROM feedback
		WHERE course = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, models.NormalizeCourse(course), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.Feedback, 0)
	for rows.Next() {
		entry, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes an entry by ID.
func (r *PostgresFeedbackRepository) Delete(ctx context.Context, id string) (*models.Feedback, error) {
	if uuid.Validate(id) != nil {
		return nil, models.ErrFeedbackNotFound
	}
	defer observe("delete", time.Now())

	query := `DELETE FROM feedback WHERE id = $1 RETURNING ` + feedbackColumns

	entry, err := scanFeedback(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to delete feedback")
	}
	return entry, nil
}

// HealthCheck verifies the database connection is healthy.
func (r *PostgresFeedbackRepository) HealthCheck(ctx context.Context) error {
	return r.pool.HealthCheck(ctx)
}

func scanFeedback(row pgx.Row) (*models.Feedback, error) {
	var f models.Feedback
	if err := row.Scan(&f.ID, &f.StudentID, &f.Course, &f.Text, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrFeedbackNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func observe(operation string, start time.Time) {
	metrics.RecordStoreQuery("postgres", operation, time.Since(start))
}
