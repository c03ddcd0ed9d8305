package storage

import (
	"context"
	"slices"
	"time"

	"github.com/cyp0633/librecur/recurrence"
)

// Storage interface connects your backend storage (e.g. database) with the planner.
// Please use the error types provided.
type Storage interface {
	// GetTask retrieves a task by id.
	GetTask(ctx context.Context, id string) (*Task, error)
	// ListTasks returns the tasks matching opts, ordered by due time and then id.
	ListTasks(ctx context.Context, opts ListOptions) ([]*Task, error)
	// CreateTask stores a new task. The caller assigns the id.
	CreateTask(ctx context.Context, task *Task) error
	// UpdateTask replaces an existing task wholesale.
	UpdateTask(ctx context.Context, task *Task) error
	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, id string) error
}

// TaskKind distinguishes the productivity items that can carry a schedule
type TaskKind string

const (
	KindTask      TaskKind = "task"
	KindHabit     TaskKind = "habit"
	KindCountdown TaskKind = "countdown"
)

// Valid reports whether k is a known kind.
func (k TaskKind) Valid() bool {
	switch k {
	case KindTask, KindHabit, KindCountdown:
		return true
	default:
		return false
	}
}

// Task is the owning record of a recurrence rule.
//
// Anchor is the first due time of the series and stays put while DueAt walks
// from occurrence to occurrence as the task is completed. Occurrence indexes,
// and so count-limited rules, are always computed from Anchor.
type Task struct {
	ID          string           `json:"id"`
	Kind        TaskKind         `json:"kind"`
	Title       string           `json:"title"`
	Notes       string           `json:"notes,omitempty"`
	DueAt       time.Time        `json:"dueAt"`
	Anchor      time.Time        `json:"anchor"`
	Recurrence  *recurrence.Rule `json:"recurrence,omitempty"`
	Completed   bool             `json:"completed"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// IsRecurring reports whether the task carries a rule.
func (t *Task) IsRecurring() bool {
	return t.Recurrence != nil
}

// SeriesAnchor is Anchor, or DueAt for records that never had one.
func (t *Task) SeriesAnchor() time.Time {
	if t.Anchor.IsZero() {
		return t.DueAt
	}
	return t.Anchor
}

// Clone returns a deep copy. Rules are immutable, so the rule value is shared.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Recurrence != nil {
		r := *t.Recurrence
		c.Recurrence = &r
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// SortTasks orders tasks by due time, breaking ties by id.
func SortTasks(tasks []*Task) {
	slices.SortStableFunc(tasks, func(a, b *Task) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}
