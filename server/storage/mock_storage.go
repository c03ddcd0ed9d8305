package storage

import (
	"context"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/stretchr/testify/mock"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

// GetTask implements the Storage interface
func (m *MockStorage) GetTask(ctx context.Context, id string) (*Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Task), args.Error(1)
}

// ListTasks implements the Storage interface
func (m *MockStorage) ListTasks(ctx context.Context, opts ListOptions) ([]*Task, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Task), args.Error(1)
}

// CreateTask implements the Storage interface
func (m *MockStorage) CreateTask(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// UpdateTask implements the Storage interface
func (m *MockStorage) UpdateTask(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// DeleteTask implements the Storage interface
func (m *MockStorage) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Helper methods for creating test data ---

// NewMockTask creates a one-off test task
func NewMockTask(id, title string, due time.Time) *Task {
	return &Task{
		ID:        id,
		Kind:      KindTask,
		Title:     title,
		DueAt:     due,
		Anchor:    due,
		CreatedAt: due.Add(-24 * time.Hour),
		UpdatedAt: due.Add(-24 * time.Hour),
	}
}

// NewMockRecurringTask creates a test task carrying a rule
func NewMockRecurringTask(id, title string, due time.Time, rule recurrence.Rule) *Task {
	task := NewMockTask(id, title, due)
	task.Kind = KindHabit
	task.Recurrence = &rule
	return task
}

// ExpectTask sets up GetTask to return task (or not found when task is nil)
func (m *MockStorage) ExpectTask(id string, task *Task) {
	if task == nil {
		m.On("GetTask", mock.Anything, id).Return(nil, &Error{Type: ErrNotFound, Message: "task not found"})
		return
	}
	m.On("GetTask", mock.Anything, id).Return(task.Clone(), nil)
}
