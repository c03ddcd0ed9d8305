// Package planner is the edit boundary for tasks that own a recurrence rule.
// Rules are validated and normalized here, so evaluation further down never
// sees an invalid one.
package planner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Service manages tasks and their schedules
type Service struct {
	store  storage.Storage
	engine *recurrence.Engine
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces uuid.NewString for new task ids
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New creates a planner over store. A nil engine gets recurrence.NewEngine().
func New(store storage.Storage, engine *recurrence.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	s := &Service{
		store:  store,
		engine: engine,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the recurrence engine the planner evaluates with
func (s *Service) Engine() *recurrence.Engine {
	return s.engine
}

// Draft holds the user-editable fields of a task.
type Draft struct {
	Kind       storage.TaskKind `json:"kind,omitempty"`
	Title      string           `json:"title"`
	Notes      string           `json:"notes,omitempty"`
	DueAt      time.Time        `json:"dueAt"`
	Recurrence *recurrence.Rule `json:"recurrence,omitempty"`
}

func (d Draft) check() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, invalidInput("title is required")
	}
	if d.DueAt.IsZero() {
		return d, invalidInput("due time is required")
	}
	if d.Kind == "" {
		d.Kind = storage.KindTask
	}
	if !d.Kind.Valid() {
		return d, invalidInput("unknown task kind " + string(d.Kind))
	}
	return d, nil
}

func invalidInput(msg string) error {
	return &storage.Error{Type: storage.ErrInvalidInput, Message: msg}
}

func (s *Service) normalize(r *recurrence.Rule) (*recurrence.Rule, error) {
	if r == nil {
		return nil, nil
	}
	normalized, err := s.engine.Validate(*r)
	if err != nil {
		return nil, err
	}
	return &normalized, nil
}

// Create stores a new task. The due time becomes the anchor of its series.
func (s *Service) Create(ctx context.Context, d Draft) (*storage.Task, error) {
	d, err := d.check()
	if err != nil {
		return nil, err
	}
	rule, err := s.normalize(d.Recurrence)
	if err != nil {
		return nil, err
	}

	now := s.now()
	task := &storage.Task{
		ID:         s.newID(),
		Kind:       d.Kind,
		Title:      d.Title,
		Notes:      d.Notes,
		DueAt:      d.DueAt,
		Anchor:     d.DueAt,
		Recurrence: rule,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "id", task.ID, "kind", task.Kind, "recurring", task.IsRecurring())
	return task, nil
}

// Update replaces the editable fields of a task. The rule is replaced
// wholesale; a new rule or a moved due time restarts the series there.
func (s *Service) Update(ctx context.Context, id string, d Draft) (*storage.Task, error) {
	d, err := d.check()
	if err != nil {
		return nil, err
	}
	rule, err := s.normalize(d.Recurrence)
	if err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if !sameRule(task.Recurrence, rule) || !task.DueAt.Equal(d.DueAt) {
		task.Anchor = d.DueAt
	}
	task.Kind = d.Kind
	task.Title = d.Title
	task.Notes = d.Notes
	task.DueAt = d.DueAt
	task.Recurrence = rule
	task.UpdatedAt = s.now()

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task updated", "id", task.ID)
	return task, nil
}

func sameRule(a, b *recurrence.Rule) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Get returns one task
func (s *Service) Get(ctx context.Context, id string) (*storage.Task, error) {
	return s.store.GetTask(ctx, id)
}

// List returns tasks matching opts
func (s *Service) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Task, error) {
	return s.store.ListTasks(ctx, opts)
}

// Delete removes a task
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "id", id)
	return nil
}

// rule returns the task's rule, or None when the task does not recur or its
// stored rule can no longer be evaluated.
func (s *Service) rule(task *storage.Task) mo.Option[recurrence.Rule] {
	if task.Recurrence == nil {
		return mo.None[recurrence.Rule]()
	}
	rule, err := recurrence.Validate(*task.Recurrence)
	if err != nil {
		s.logger.Warn("treating task as non-recurring", "id", task.ID, "type", task.Recurrence.Type(), "error", err)
		return mo.None[recurrence.Rule]()
	}
	return mo.Some(rule)
}

// Complete finishes the current occurrence. A recurring task moves on to the
// first occurrence after both now and its current due time; a task without a
// further occurrence is marked completed. Completing a completed task is a
// no-op.
func (s *Service) Complete(ctx context.Context, id string) (*storage.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}

	now := s.now()
	task.UpdatedAt = now
	task.CompletedAt = &now

	next := mo.None[time.Time]()
	if rule, ok := s.rule(task).Get(); ok {
		after := task.DueAt
		if now.After(after) {
			after = now
		}
		if next, err = s.engine.Next(rule, task.SeriesAnchor(), after); err != nil {
			return nil, err
		}
	}

	if due, ok := next.Get(); ok {
		task.Anchor = task.SeriesAnchor()
		task.DueAt = due
		s.logger.Info("occurrence completed", "id", task.ID, "next", due)
	} else {
		task.Completed = true
		s.logger.Info("task completed", "id", task.ID)
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// NextDue reports when the task is next due after now. A pending due time
// still ahead wins; otherwise the series is consulted. Completed tasks and
// one-off tasks already past have none.
func (s *Service) NextDue(ctx context.Context, id string) (mo.Option[time.Time], error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return mo.None[time.Time](), err
	}
	return s.nextDue(task, s.now())
}

func (s *Service) nextDue(task *storage.Task, now time.Time) (mo.Option[time.Time], error) {
	if task.Completed {
		return mo.None[time.Time](), nil
	}
	if task.DueAt.After(now) {
		return mo.Some(task.DueAt), nil
	}
	rule, ok := s.rule(task).Get()
	if !ok {
		return mo.None[time.Time](), nil
	}
	return s.engine.Next(rule, task.SeriesAnchor(), now)
}

// Upcoming lists up to count due times of a task, starting with the pending
// one.
func (s *Service) Upcoming(ctx context.Context, id string, count int) ([]time.Time, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.occurrences(task, task.DueAt, mo.None[time.Time](), count)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(entries))
	for i, e := range entries {
		out[i] = e.At
	}
	return out, nil
}

// Entry is one due time of one task
type Entry struct {
	TaskID string           `json:"taskId"`
	Title  string           `json:"title"`
	Kind   storage.TaskKind `json:"kind"`
	At     time.Time        `json:"at"`
}

// Agenda merges the due times of all open tasks at or after from into one
// list ordered by time, then task id, holding at most limit entries.
func (s *Service) Agenda(ctx context.Context, from time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.collect(ctx, func(task *storage.Task) ([]Entry, error) {
		return s.occurrences(task, from, mo.None[time.Time](), limit)
	}, limit)
}

// Window returns the due times of all open tasks in the closed window
// [start, end], ordered like Agenda.
func (s *Service) Window(ctx context.Context, start, end time.Time) ([]Entry, error) {
	if end.Before(start) {
		return nil, invalidInput("window ends before it starts")
	}
	limit := s.engine.Config().MaxTakeCount
	if limit <= 0 {
		limit = math.MaxInt
	}
	return s.collect(ctx, func(task *storage.Task) ([]Entry, error) {
		return s.occurrences(task, start, mo.Some(end), limit)
	}, 0)
}

func (s *Service) collect(ctx context.Context, each func(*storage.Task) ([]Entry, error), limit int) ([]Entry, error) {
	tasks, err := s.store.ListTasks(ctx, storage.ListOptions{})
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := each(task)
		if err != nil {
			var recErr *recurrence.Error
			if errors.As(err, &recErr) {
				s.logger.Warn("skipping task with unusable schedule", "id", task.ID, "error", err)
				continue
			}
			return nil, err
		}
		entries = append(entries, found...)
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return strings.Compare(a.TaskID, b.TaskID)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// occurrences lists the due times of one open task at or after from: the
// pending DueAt, then the series beyond it. A present end closes the window.
func (s *Service) occurrences(task *storage.Task, from time.Time, end mo.Option[time.Time], limit int) ([]Entry, error) {
	if task.Completed || limit <= 0 {
		return nil, nil
	}
	entry := func(at time.Time) Entry {
		return Entry{TaskID: task.ID, Title: task.Title, Kind: task.Kind, At: at}
	}
	inWindow := func(at time.Time) bool {
		last, bounded := end.Get()
		return !at.Before(from) && (!bounded || !at.After(last))
	}

	var out []Entry
	if inWindow(task.DueAt) {
		out = append(out, entry(task.DueAt))
	}

	rule, ok := s.rule(task).Get()
	if !ok || len(out) == limit {
		return out, nil
	}

	after := task.DueAt
	if edge := from.Add(-time.Nanosecond); edge.After(after) {
		after = edge
	}

	var times []time.Time
	var err error
	if last, bounded := end.Get(); bounded {
		if !last.After(after) {
			return out, nil
		}
		times, err = s.engine.Between(rule, task.SeriesAnchor(), after.Add(time.Nanosecond), last)
	} else {
		times, err = s.engine.Take(rule, task.SeriesAnchor(), after, limit-len(out))
	}
	if err != nil {
		return nil, err
	}
	for _, at := range times {
		if len(out) == limit {
			break
		}
		out = append(out, entry(at))
	}
	return out, nil
}

// Import stores decoded tasks, creating new ids and replacing known ones.
// Rules go through the same validation as Create.
func (s *Service) Import(ctx context.Context, tasks []*storage.Task) (created, updated int, err error) {
	now := s.now()
	for _, task := range tasks {
		if task.Recurrence, err = s.normalize(task.Recurrence); err != nil {
			return created, updated, err
		}
		if !task.Kind.Valid() {
			task.Kind = storage.KindTask
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}
		task.UpdatedAt = now

		err = s.store.CreateTask(ctx, task)
		if storage.IsType(err, storage.ErrAlreadyExists) {
			err = s.store.UpdateTask(ctx, task)
			if err == nil {
				updated++
			}
		} else if err == nil {
			created++
		}
		if err != nil {
			return created, updated, err
		}
	}
	s.logger.Info("tasks imported", "created", created, "updated", updated)
	return created, updated, nil
}
