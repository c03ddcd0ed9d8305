// Package memory keeps API users in memory.
package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/cyp0633/librecur/server/auth"
)

// User represents a user in the memory store
type User struct {
	Username string
	Password string
	ReadOnly bool
}

// ParseUser reads a "name:password" entry, optionally suffixed with ":ro"
// for a read-only user.
func ParseUser(entry string) (User, error) {
	name, rest, ok := strings.Cut(entry, ":")
	if !ok || name == "" || rest == "" {
		return User{}, fmt.Errorf("invalid user entry %q: want name:password[:ro]", entry)
	}
	u := User{Username: name, Password: rest}
	if pw, ok := strings.CutSuffix(rest, ":ro"); ok && pw != "" {
		u.Password = pw
		u.ReadOnly = true
	}
	return u, nil
}

// Store implements an in-memory authentication store
type Store struct {
	mu     sync.RWMutex
	users  map[string]User // map[username]User
	logger *slog.Logger
}

// New creates a new in-memory authentication store
func New(opts ...Option) *Store {
	s := &Store{
		users:  make(map[string]User),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromEntries builds a store from ParseUser entries.
func FromEntries(entries []string, opts ...Option) (*Store, error) {
	s := New(opts...)
	for _, entry := range entries {
		u, err := ParseUser(entry)
		if err != nil {
			return nil, err
		}
		if err := s.AddUser(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Len reports how many users are registered
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// AddUser adds a new user to the store
func (s *Store) AddUser(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Username]; exists {
		s.logger.Warn("failed to add user: already exists",
			"username", u.Username)
		return fmt.Errorf("user already exists: %s", u.Username)
	}

	s.users[u.Username] = u
	s.logger.Debug("user added", "username", u.Username, "read_only", u.ReadOnly)
	return nil
}

// Authenticate implements auth.Authenticator
func (s *Store) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Principal, error) {
	s.mu.RLock()
	user, exists := s.users[creds.Username]
	s.mu.RUnlock()

	if !exists {
		s.logger.Info("authentication failed: user not found",
			"username", creds.Username)
		return nil, &auth.Error{
			Type:    auth.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(creds.Password)) != 1 {
		s.logger.Info("authentication failed: invalid password",
			"username", creds.Username)
		return nil, &auth.Error{
			Type:    auth.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	return &auth.Principal{ID: user.Username, ReadOnly: user.ReadOnly}, nil
}

// ValidateAccess implements auth.Authenticator. Read-only principals are
// limited to GET and HEAD.
func (s *Store) ValidateAccess(ctx context.Context, principal *auth.Principal, method, path string) error {
	if principal == nil {
		return &auth.Error{
			Type:    auth.ErrUnauthorized,
			Message: "authentication required",
		}
	}

	if principal.ReadOnly && method != http.MethodGet && method != http.MethodHead {
		s.logger.Warn("access validation failed: read-only user",
			"username", principal.ID,
			"method", method,
			"path", path)
		return &auth.Error{
			Type:    auth.ErrForbidden,
			Message: fmt.Sprintf("%s %s requires write access", method, path),
		}
	}
	return nil
}
