// Package client talks to a recurd server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/samber/mo"
)

// Client defines the task planner operations available remotely
type Client interface {
	CreateTask(ctx context.Context, draft planner.Draft) (*storage.Task, error)
	GetTask(ctx context.Context, id string) (*storage.Task, error)
	ListTasks(ctx context.Context, opts storage.ListOptions) ([]*storage.Task, error)
	UpdateTask(ctx context.Context, id string, draft planner.Draft) (*storage.Task, error)
	DeleteTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string) (*storage.Task, error)
	NextDue(ctx context.Context, id string) (mo.Option[time.Time], error)
	Agenda(ctx context.Context, from time.Time, limit int) ([]planner.Entry, error)

	Next(ctx context.Context, rule recurrence.Rule, anchor, after time.Time) (mo.Option[time.Time], error)
	Describe(ctx context.Context, rule recurrence.Rule, locale string) (string, error)

	ExportCalendar(ctx context.Context) (string, error)
	ImportCalendar(ctx context.Context, ics io.Reader) (created, updated int, err error)
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type client struct {
	http     *http.Client
	baseURL  url.URL
	logger   *slog.Logger
	username string
	password string
}

// Option configures a client
type Option func(*client)

// WithHTTPClient replaces the HTTP client; its transport is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBasicAuth wraps the transport with Basic credentials
func WithBasicAuth(username, password string) Option {
	return func(c *client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the logger for request tracing
func WithLogger(logger *slog.Logger) Option {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the API mounted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/"

	c := &client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: *u,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.username != "" {
		hc := *c.http
		hc.Transport = NewBasicAuthTransport(c.username, c.password, hc.Transport, c.logger)
		c.http = &hc
	}
	return c, nil
}

// resolveURL resolves a path relative to the base URL
func (c *client) resolveURL(path string, query url.Values) string {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/"), RawQuery: query.Encode()}
	return c.baseURL.ResolveReference(ref).String()
}

// do sends a request and decodes a JSON answer into out when out is non-nil.
func (c *client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.send(ctx, method, path, query, "application/json", body, func(r io.Reader) error {
		if out == nil {
			return nil
		}
		return decodeJSON(r, out)
	})
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, read func(io.Reader) error) error {
	target := c.resolveURL(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", target, "error", err)
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "method", method, "url", target, "status", resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	return read(resp.Body)
}

func responseError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
	} else if msg := strings.TrimSpace(string(data)); msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}
