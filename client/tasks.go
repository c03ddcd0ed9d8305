package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/samber/mo"
)

func taskPath(id string, rest ...string) string {
	return strings.Join(append([]string{"tasks", url.PathEscape(id)}, rest...), "/")
}

func (c *client) CreateTask(ctx context.Context, draft planner.Draft) (*storage.Task, error) {
	var task storage.Task
	if err := c.do(ctx, http.MethodPost, "tasks/", nil, draft, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *client) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	var task storage.Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// listQuery mirrors the server's list filters
func listQuery(opts storage.ListOptions) url.Values {
	q := url.Values{}
	if opts.DueFrom != nil {
		q.Set("from", opts.DueFrom.Format(time.RFC3339))
	}
	if opts.DueTo != nil {
		q.Set("to", opts.DueTo.Format(time.RFC3339))
	}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}
	if opts.IncludeCompleted {
		q.Set("completed", "true")
	}
	if opts.OnlyRecurring {
		q.Set("recurring", "true")
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	return q
}

func (c *client) ListTasks(ctx context.Context, opts storage.ListOptions) ([]*storage.Task, error) {
	var tasks []*storage.Task
	if err := c.do(ctx, http.MethodGet, "tasks/", listQuery(opts), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *client) UpdateTask(ctx context.Context, id string, draft planner.Draft) (*storage.Task, error) {
	var task storage.Task
	if err := c.do(ctx, http.MethodPut, taskPath(id), nil, draft, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

func (c *client) CompleteTask(ctx context.Context, id string) (*storage.Task, error) {
	var task storage.Task
	if err := c.do(ctx, http.MethodPost, taskPath(id, "complete"), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *client) NextDue(ctx context.Context, id string) (mo.Option[time.Time], error) {
	var resp struct {
		Next *time.Time `json:"next"`
	}
	if err := c.do(ctx, http.MethodGet, taskPath(id, "next"), nil, nil, &resp); err != nil {
		return mo.None[time.Time](), err
	}
	return mo.PointerToOption(resp.Next), nil
}

// Agenda lists the next limit due times from "from"; a zero from lets the
// server use its own clock.
func (c *client) Agenda(ctx context.Context, from time.Time, limit int) ([]planner.Entry, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(time.RFC3339))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Entries []planner.Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "agenda", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *client) ExportCalendar(ctx context.Context) (string, error) {
	var sb strings.Builder
	err := c.send(ctx, http.MethodGet, "calendar.ics", nil, "", nil, func(r io.Reader) error {
		_, err := io.Copy(&sb, r)
		return err
	})
	return sb.String(), err
}

func (c *client) ImportCalendar(ctx context.Context, ics io.Reader) (created, updated int, err error) {
	var resp struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}
	err = c.send(ctx, http.MethodPost, "tasks/import", nil, "text/calendar; charset=utf-8", ics, func(r io.Reader) error {
		return decodeJSON(r, &resp)
	})
	return resp.Created, resp.Updated, err
}
