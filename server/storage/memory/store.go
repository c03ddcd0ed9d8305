// memory based implementation for testing purposes
package memory

import (
	"context"
	"sync"

	"github.com/cyp0633/librecur/server/storage"
)

// Store implements storage.Storage interface using an in-memory map.
// Tasks are copied on the way in and out, so callers never share state with the store.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*storage.Task
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		tasks: make(map[string]*storage.Task),
	}
}

func (s *Store) GetTask(_ context.Context, id string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}

	return task.Clone(), nil
}

func (s *Store) ListTasks(_ context.Context, opts storage.ListOptions) ([]*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := []*storage.Task{}
	for _, task := range s.tasks {
		if opts.Matches(task) {
			tasks = append(tasks, task.Clone())
		}
	}

	storage.SortTasks(tasks)
	return opts.Page(tasks), nil
}

func (s *Store) CreateTask(_ context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "task id is required",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "task already exists",
		}
	}

	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *Store) UpdateTask(_ context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "task id is required",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}

	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}

	delete(s.tasks, id)
	return nil
}

var _ storage.Storage = (*Store)(nil)
