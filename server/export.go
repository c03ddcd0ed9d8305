package server

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/cyp0633/librecur/internal/xcal"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/go-chi/chi/v5"
)

type importResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (s *Server) writeICS(w http.ResponseWriter, r *http.Request, tasks ...*storage.Task) {
	body, err := s.codec.EncodeString(tasks...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(headerContentType, mimeTypeCalendar)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func (s *Server) writeXCal(w http.ResponseWriter, r *http.Request, tasks ...*storage.Task) {
	doc, err := xcal.Document(tasks, s.engine.Zone(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc.Indent(2)
	w.Header().Set(headerContentType, mimeTypeXCal)
	w.WriteHeader(http.StatusOK)
	if _, err := doc.WriteTo(w); err != nil {
		s.logger.Error("failed to write xcal document", "error", err)
	}
}

func (s *Server) handleTaskICS(w http.ResponseWriter, r *http.Request) {
	task, err := s.planner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeICS(w, r, task)
}

func (s *Server) handleTaskXCal(w http.ResponseWriter, r *http.Request) {
	task, err := s.planner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeXCal(w, r, task)
}

func (s *Server) openTasks(r *http.Request) ([]*storage.Task, error) {
	return s.planner.List(r.Context(), storage.ListOptions{})
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.openTasks(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeICS(w, r, tasks...)
}

func (s *Server) handleCalendarXCal(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.openTasks(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeXCal(w, r, tasks...)
}

// handleImport reads a text/calendar body, or an xCal one when the request is
// application/calendar+xml, and stores its VTODOs. A rule the model cannot
// hold rejects the whole import.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := io.LimitReader(r.Body, maxBodyBytes)
	var tasks []*storage.Task
	var err error
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get(headerContentType)); mediaType == mediaTypeXCal {
		tasks, err = xcal.Decode(body, s.engine.Zone())
	} else {
		tasks, err = s.codec.Decode(body)
	}
	if err != nil {
		var recErr *recurrence.Error
		if !errors.As(err, &recErr) {
			err = errBadRequest(err, "invalid calendar")
		}
		s.writeError(w, r, err)
		return
	}

	created, updated, err := s.planner.Import(r.Context(), tasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, importResponse{Created: created, Updated: updated})
}
