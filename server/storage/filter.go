package storage

import "time"

// ListOptions provides options for listing tasks
type ListOptions struct {
	// Due time window; a nil bound is open
	DueFrom *time.Time
	DueTo   *time.Time

	// Kind filter; empty matches every kind
	Kind TaskKind

	// Completed tasks are skipped unless requested
	IncludeCompleted bool

	// OnlyRecurring keeps tasks that carry a rule
	OnlyRecurring bool

	// Pagination; Limit <= 0 means unlimited
	Limit  int
	Offset int
}

// Matches reports whether a task passes the filter part of the options.
// Both bounds of the due window are inclusive.
func (o ListOptions) Matches(t *Task) bool {
	if o.DueFrom != nil && t.DueAt.Before(*o.DueFrom) {
		return false
	}
	if o.DueTo != nil && t.DueAt.After(*o.DueTo) {
		return false
	}
	if o.Kind != "" && t.Kind != o.Kind {
		return false
	}
	if t.Completed && !o.IncludeCompleted {
		return false
	}
	if o.OnlyRecurring && !t.IsRecurring() {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered result.
func (o ListOptions) Page(tasks []*Task) []*Task {
	if o.Offset > 0 {
		if o.Offset >= len(tasks) {
			return []*Task{}
		}
		tasks = tasks[o.Offset:]
	}
	if o.Limit > 0 && len(tasks) > o.Limit {
		tasks = tasks[:o.Limit]
	}
	return tasks
}
