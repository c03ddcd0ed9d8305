// Package sqlite persists tasks in a SQLite database through gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// taskRecord is the table row behind storage.Task. The rule is kept as its
// JSON document so the column mirrors the persisted rule shape.
type taskRecord struct {
	ID          string `gorm:"primaryKey"`
	Kind        string `gorm:"index"`
	Title       string
	Notes       string
	DueAt       time.Time `gorm:"index"`
	Anchor      time.Time
	Recurrence  string
	Completed   bool `gorm:"default:false;index"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (taskRecord) TableName() string { return "tasks" }

// Store implements storage.Storage on top of gorm
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger routes gorm warnings and slow queries through logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens a SQLite database and runs migrations.
func Open(dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		dsn = "librecur.db"
	}

	s := &Store{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	s.db = db
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	var rec taskRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
		}
		return nil, unavailable("get task", err)
	}
	task, err := rec.task()
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, opts storage.ListOptions) ([]*storage.Task, error) {
	q := s.db.WithContext(ctx).Model(&taskRecord{})
	if opts.DueFrom != nil {
		q = q.Where("due_at >= ?", opts.DueFrom.UTC())
	}
	if opts.DueTo != nil {
		q = q.Where("due_at <= ?", opts.DueTo.UTC())
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if !opts.IncludeCompleted {
		q = q.Where("completed = ?", false)
	}
	if opts.OnlyRecurring {
		q = q.Where("recurrence <> ''")
	}
	q = q.Order("due_at, id")
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var recs []taskRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, unavailable("list tasks", err)
	}

	// A row whose rule no longer decodes is listed without its rule, so one
	// bad record does not hide every other task.
	tasks := make([]*storage.Task, 0, len(recs))
	for i := range recs {
		task, err := recs[i].task()
		if err != nil {
			s.logger.WarnContext(ctx, "listing task without its recurrence", "task", recs[i].ID, "error", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "task id is required"}
	}
	rec, err := recordOf(task)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&taskRecord{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
			return unavailable("create task", err)
		}
		if count > 0 {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "task already exists"}
		}
		if err := tx.Create(rec).Error; err != nil {
			return unavailable("create task", err)
		}
		return nil
	})
}

func (s *Store) UpdateTask(ctx context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "task id is required"}
	}
	rec, err := recordOf(task)
	if err != nil {
		return err
	}

	// Select("*") writes zero values too, so a cleared rule or completion sticks.
	res := s.db.WithContext(ctx).Model(&taskRecord{}).Where("id = ?", task.ID).Select("*").Updates(rec)
	if res.Error != nil {
		return unavailable("update task", res.Error)
	}
	if res.RowsAffected == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&taskRecord{})
	if res.Error != nil {
		return unavailable("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
	}
	return nil
}

func unavailable(op string, err error) error {
	return &storage.Error{Type: storage.ErrUnavailable, Message: op, Err: err}
}

func recordOf(task *storage.Task) (*taskRecord, error) {
	rec := &taskRecord{
		ID:        task.ID,
		Kind:      string(task.Kind),
		Title:     task.Title,
		Notes:     task.Notes,
		DueAt:     task.DueAt.UTC(),
		Anchor:    task.Anchor.UTC(),
		Completed: task.Completed,
		CreatedAt: task.CreatedAt.UTC(),
		UpdatedAt: task.UpdatedAt.UTC(),
	}
	if task.CompletedAt != nil {
		at := task.CompletedAt.UTC()
		rec.CompletedAt = &at
	}
	if task.Recurrence != nil {
		data, err := json.Marshal(task.Recurrence)
		if err != nil {
			return nil, &storage.Error{Type: storage.ErrInvalidInput, Message: "encode recurrence", Err: err}
		}
		rec.Recurrence = string(data)
	}
	return rec, nil
}

// task converts the row. On a rule decode error the task is still returned,
// with no recurrence, next to the error.
func (rec *taskRecord) task() (*storage.Task, error) {
	task := &storage.Task{
		ID:          rec.ID,
		Kind:        storage.TaskKind(rec.Kind),
		Title:       rec.Title,
		Notes:       rec.Notes,
		DueAt:       rec.DueAt,
		Anchor:      rec.Anchor,
		Completed:   rec.Completed,
		CompletedAt: rec.CompletedAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Recurrence != "" {
		var rule recurrence.Rule
		if err := json.Unmarshal([]byte(rec.Recurrence), &rule); err != nil {
			return task, &storage.Error{Type: storage.ErrUnavailable, Message: "decode recurrence of task " + rec.ID, Err: err}
		}
		task.Recurrence = &rule
	}
	return task, nil
}

var _ storage.Storage = (*Store)(nil)
