package checks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/feedtrack/feedtrack/internal/models"
	"github.com/feedtrack/feedtrack/internal/services"
)

// MockStore is a programmable stand-in for services.FeedbackStore. Every
// check wires its own responses; nothing is shared between checks.
type MockStore struct {
	mock.Mock
}

var _ services.FeedbackStore = (*MockStore)(nil)

// NewMockStore returns an unprogrammed store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) InsertFeedback(ctx context.Context, entry *models.Feedback) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetFeedback(ctx context.Context, studentID int64) (*models.Feedback, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockStore) AddFeedback(ctx context.Context, entry *models.Feedback) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}
