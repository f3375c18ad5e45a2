// Package services contains business logic.
package services

import (
	"context"
	"errors"

	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/models"
	"github.com/feedtrack/feedtrack/internal/repository"
	"github.com/feedtrack/feedtrack/internal/security"
)

// Submission errors.
var (
	ErrNilFeedback     = errors.New("feedback entry is required")
	ErrMaliciousInput  = errors.New("feedback rejected as malicious input")
	ErrFeedbackTooLong = errors.New("feedback exceeds maximum length")
	ErrInvalidText     = errors.New("feedback text is not acceptable")
)

// FeedbackStore is the data-store contract used by callers that only need to
// record and read back feedback. InsertFeedback trusts its input; AddFeedback
// screens it first. Both report whether the entry was stored and, on success,
// fill in the entry's ID, normalized course, and creation time.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, entry *models.Feedback) (bool, error)
	GetFeedback(ctx context.Context, studentID int64) (*models.Feedback, error)
	AddFeedback(ctx context.Context, entry *models.Feedback) (bool, error)
}

// FeedbackService defines the full set of feedback operations.
type FeedbackService interface {
	FeedbackStore
	Get(ctx context.Context, id string) (*models.Feedback, error)
	ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error)
	Remove(ctx context.Context, id string) (*models.Feedback, error)
}

// FeedbackServiceImpl implements FeedbackService.
type FeedbackServiceImpl struct {
	repo      repository.FeedbackRepository
	sanitizer *security.Sanitizer
}

var _ FeedbackService = (*FeedbackServiceImpl)(nil)

// NewFeedbackService creates a FeedbackService with the default sanitizer.
func NewFeedbackService(repo repository.FeedbackRepository) *FeedbackServiceImpl {
	return NewFeedbackServiceWithSanitizer(repo, security.NewSanitizer(security.DefaultConfig()))
}

// NewFeedbackServiceWithSanitizer creates a FeedbackService with a custom sanitizer.
func NewFeedbackServiceWithSanitizer(repo repository.FeedbackRepository, sanitizer *security.Sanitizer) *FeedbackServiceImpl {
	return &FeedbackServiceImpl{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// InsertFeedback stores an entry after model validation only.
func (s *FeedbackServiceImpl) InsertFeedback(ctx context.Context, entry *models.Feedback) (bool, error) {
	if entry == nil {
		return false, ErrNilFeedback
	}
	return s.store(ctx, entry)
}

// AddFeedback screens untrusted text with the sanitizer before storing it.
func (s *FeedbackServiceImpl) AddFeedback(ctx context.Context, entry *models.Feedback) (bool, error) {
	if entry == nil {
		return false, ErrNilFeedback
	}

	if s.sanitizer != nil {
		if err := s.sanitizer.Validate(entry.Text); err != nil {
			mapped := mapSecurityError(err)
			metrics.RecordFeedbackRejected(rejectReason(mapped))
			return false, mapped
		}
	}

	return s.store(ctx, entry)
}

// GetFeedback returns the latest entry left by a student.
func (s *FeedbackServiceImpl) GetFeedback(ctx context.Context, studentID int64) (*models.Feedback, error) {
	if studentID <= 0 {
		return nil, models.ErrInvalidStudentID
	}
	return s.repo.GetLatestByStudent(ctx, studentID)
}

// Get returns an entry by ID.
func (s *FeedbackServiceImpl) Get(ctx context.Context, id string) (*models.Feedback, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByCourse returns a course's entries, newest first.
func (s *FeedbackServiceImpl) ListByCourse(ctx context.Context, course string, limit int) ([]*models.Feedback, error) {
	if models.NormalizeCourse(course) == "" {
		return nil, models.ErrEmptyCourse
	}
	return s.repo.ListByCourse(ctx, course, limit)
}

// Remove deletes an entry by ID.
func (s *FeedbackServiceImpl) Remove(ctx context.Context, id string) (*models.Feedback, error) {
	return s.repo.Delete(ctx, id)
}

func (s *FeedbackServiceImpl) store(ctx context.Context, entry *models.Feedback) (bool, error) {
	stored, err := s.repo.Create(ctx, entry.AsCreate())
	if err != nil {
		if isValidationError(err) {
			metrics.RecordFeedbackRejected("validation")
		}
		return false, err
	}

	entry.ID = stored.ID
	entry.Course = stored.Course
	entry.CreatedAt = stored.CreatedAt
	metrics.RecordFeedbackSubmitted()
	return true, nil
}

// IsValidationError reports whether err is caused by the caller's input.
func IsValidationError(err error) bool {
	return isValidationError(err) ||
		errors.Is(err, ErrNilFeedback) ||
		errors.Is(err, ErrMaliciousInput) ||
		errors.Is(err, ErrFeedbackTooLong) ||
		errors.Is(err, ErrInvalidText)
}

func isValidationError(err error) bool {
	return errors.Is(err, models.ErrInvalidStudentID) ||
		errors.Is(err, models.ErrEmptyCourse) ||
		errors.Is(err, models.ErrInvalidCourse) ||
		errors.Is(err, models.ErrEmptyFeedback)
}

// mapSecurityError maps security package errors to service errors.
func mapSecurityError(err error) error {
	switch {
	case errors.Is(err, security.ErrSQLInjection):
		return ErrMaliciousInput
	case errors.Is(err, security.ErrTextTooLong):
		return ErrFeedbackTooLong
	case errors.Is(err, security.ErrEmptyText):
		return models.ErrEmptyFeedback
	default:
		return ErrInvalidText
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMaliciousInput):
		return "sql_injection"
	case errors.Is(err, ErrFeedbackTooLong):
		return "too_long"
	case errors.Is(err, models.ErrEmptyFeedback):
		return "empty"
	default:
		return "invalid_text"
	}
}
