// Package reminder finds occurrences that are about to come due and hands
// each one to a Notifier once.
package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/server/storage"
)

// Reminder is one upcoming occurrence of a task
type Reminder struct {
	TaskID string
	Title  string
	Kind   storage.TaskKind
	At     time.Time
	// SweptAt is the sweep instant that found the occurrence.
	SweptAt time.Time
}

// Notifier delivers reminders
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, r Reminder) error

func (f NotifierFunc) Notify(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// LogNotifier writes reminders to a logger
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, r Reminder) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "reminder",
		"task", r.TaskID,
		"title", r.Title,
		"kind", r.Kind,
		"at", r.At,
		"in", r.At.Sub(r.SweptAt).Round(time.Second).String(),
	)
	return nil
}

// Source lists due times in a closed window. *planner.Service implements it.
type Source interface {
	Window(ctx context.Context, start, end time.Time) ([]planner.Entry, error)
}

type sentKey struct {
	taskID string
	unix   int64
}

// Sweeper scans for occurrences in (now, now+lead] and remembers which ones
// it has already delivered.
type Sweeper struct {
	source   Source
	notifier Notifier
	lead     time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	sent map[sentKey]time.Time
}

// SweeperOption configures a Sweeper
type SweeperOption func(*Sweeper)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper creates a sweeper looking lead ahead of each sweep.
func NewSweeper(source Source, notifier Notifier, lead time.Duration, opts ...SweeperOption) (*Sweeper, error) {
	if lead <= 0 {
		return nil, fmt.Errorf("reminder lead must be positive, got %s", lead)
	}
	s := &Sweeper{
		source:   source,
		notifier: notifier,
		lead:     lead,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sent:     make(map[sentKey]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sweep delivers every occurrence in (now, now+lead] not delivered before and
// returns how many went out. A failed delivery is logged and retried on the
// next sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	entries, err := s.source.Window(ctx, now.Add(time.Nanosecond), now.Add(s.lead))
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming occurrences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Occurrences at or before now can never fall in a later window.
	for key, at := range s.sent {
		if !at.After(now) {
			delete(s.sent, key)
		}
	}

	delivered := 0
	for _, e := range entries {
		key := sentKey{taskID: e.TaskID, unix: e.At.Unix()}
		if _, done := s.sent[key]; done {
			continue
		}
		r := Reminder{TaskID: e.TaskID, Title: e.Title, Kind: e.Kind, At: e.At, SweptAt: now}
		if err := s.notifier.Notify(ctx, r); err != nil {
			s.logger.Warn("reminder delivery failed", "task", e.TaskID, "at", e.At, "error", err)
			continue
		}
		s.sent[key] = e.At
		delivered++
	}

	if delivered > 0 {
		s.logger.Debug("reminders delivered", "count", delivered, "window_end", now.Add(s.lead))
	}
	return delivered, nil
}

// Pending returns how many delivered occurrences are still remembered
func (s *Sweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
