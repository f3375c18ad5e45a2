package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/models"
)

// MemoryFeedbackRepository keeps feedback in process memory.
// Used when no database is configured and in tests.
type MemoryFeedbackRepository struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	seq     uint64
	now     func() time.Time
}

type memoryEntry struct {
	feedback *models.Feedback
	seq      uint64
}

var _ FeedbackRepository = (*MemoryFeedbackRepository)(nil)

// NewMemoryFeedbackRepository creates an empty in-memory repository.
func NewMemoryFeedbackRepository() *MemoryFeedbackRepository {
	return &MemoryFeedbackRepository{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Create stores a new entry.
func (r *MemoryFeedbackRepository) Create(_ context.Context, create *models.FeedbackCreate) (*models.Feedback, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}
	defer observeMemory("create", time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry := &models.Feedback{
		ID:        uuid.NewString(),
		StudentID: create.StudentID,
		Course:    create.Course,
		Text:      create.Text,
		CreatedAt: r.now().UTC(),
	}
	r.entries[entry.ID] = &memoryEntry{feedback: entry, seq: r.seq}

	return entry.Clone(), nil
}

// GetByID retrieves an entry by its ID.
func (r *MemoryFeedbackRepository) GetByID(_ context.Context, id string) (*models.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, models.ErrFeedbackNotFound
	}
	return e.feedback.Clone(), nil
}

// GetLatestByStudent retrieves the most recent entry left by a student.
// Entries created at the same instant are ordered by insertion.
func (r *MemoryFeedbackRepository) GetLatestByStudent(_ context.Context, studentID int64) (*models.Feedback, error) {
	defer observeMemory("get_latest", time.Now())

	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *memoryEntry
	for _, e := range r.entries {
		if e.feedback.StudentID != studentID {
			continue
		}
		if latest == nil || newer(e, latest) {
			latest = e
		}
	}
	if latest == nil {
		return nil, models.ErrFeedbackNotFound
	}
	return latest.feedback.Clone(), nil
}

// ListByCourse returns entries for a course, newest first.
func (r *MemoryFeedbackRepository) ListByCourse(_ context.Context, course string, limit int) ([]*models.Feedback, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	course = models.NormalizeCourse(course)
	defer observeMemory("list_by_course", time.Now())

	r.mu.RLock()
	matched := make([]*memoryEntry, 0)
	for _, e := range r.entries {
		if e.feedback.Course == course {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return newer(matched[i], matched[j]) })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*models.Feedback, len(matched))
	for i, e := range matched {
		out[i] = e.feedback.Clone()
	}
	return out, nil
}

// Delete removes an entry by ID.
func (r *MemoryFeedbackRepository) Delete(_ context.Context, id string) (*models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, models.ErrFeedbackNotFound
	}
	delete(r.entries, id)
	return e.feedback.Clone(), nil
}

// HealthCheck always succeeds.
func (r *MemoryFeedbackRepository) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of stored entries.
func (r *MemoryFeedbackRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func newer(a, b *memoryEntry) bool {
	if !a.feedback.CreatedAt.Equal(b.feedback.CreatedAt) {
		return a.feedback.CreatedAt.After(b.feedback.CreatedAt)
	}
	return a.seq > b.seq
}

func observeMemory(operation string, start time.Time) {
	metrics.RecordStoreQuery("memory", operation, time.Since(start))
}
