package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cyp0633/librecur/internal/ics"
	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP headers
	headerContentType = "Content-Type"

	// MIME types
	mimeTypeJSON     = "application/json"
	mimeTypeCalendar = "text/calendar; charset=utf-8"
	mimeTypeXCal     = "application/calendar+xml; charset=utf-8"

	mediaTypeXCal = "application/calendar+xml"

	// DefaultPrefix is where the API is mounted when no prefix is given
	DefaultPrefix = "/api"

	defaultAgendaLimit = 20
	maxBodyBytes       = 1 << 20
)

// Server exposes the recurrence engine and the task planner over HTTP
type Server struct {
	planner *planner.Service
	engine  *recurrence.Engine
	codec   *ics.Codec
	prefix  string
	auth    auth.Authenticator
	realm   string
	now     func() time.Time
	logger  *slog.Logger
	router  chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for request defaults such as the agenda start
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuthenticator requires Basic credentials on every API request
func WithAuthenticator(a auth.Authenticator, realm string) Option {
	return func(s *Server) {
		s.auth = a
		s.realm = realm
	}
}

// New creates the API server mounted under prefix
func New(p *planner.Service, prefix string, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("planner is required")
	}
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	s := &Server{
		planner: p,
		engine:  p.Engine(),
		prefix:  prefix,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codec = ics.NewCodec(s.engine.Zone(), s.now)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	api := chi.NewRouter()
	if s.auth != nil {
		api.Use(auth.Middleware(s.auth, s.realm))
	}
	api.Route("/recurrence", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Post("/next", s.handleNext)
		r.Post("/occurrences", s.handleOccurrences)
		r.Post("/describe", s.handleDescribe)
		r.Post("/rrule", s.handleRRule)
		r.Get("/stats", s.handleStats)
	})
	api.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleCreateTask)
		r.Post("/import", s.handleImport)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Put("/", s.handleUpdateTask)
			r.Delete("/", s.handleDeleteTask)
			r.Post("/complete", s.handleCompleteTask)
			r.Get("/next", s.handleTaskNext)
			r.Get("/occurrences", s.handleTaskOccurrences)
			r.Get("/ics", s.handleTaskICS)
			r.Get("/xcal", s.handleTaskXCal)
		})
	})
	api.Get("/calendar.ics", s.handleCalendarICS)
	api.Get("/calendar.xml", s.handleCalendarXCal)
	api.Get("/agenda", s.handleAgenda)

	if s.prefix == "" {
		r.Mount("/", api)
	} else {
		r.Mount(s.prefix, api)
	}
	return r
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Prefix returns the path the API is mounted under
func (s *Server) Prefix() string {
	return s.prefix
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("received request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr)
	})
}
