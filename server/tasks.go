package server

import (
	"net/http"
	"time"

	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/go-chi/chi/v5"
)

type taskResponse struct {
	*storage.Task
	Description string `json:"description,omitempty"`
}

type agendaResponse struct {
	Entries []planner.Entry `json:"entries"`
}

func (s *Server) taskResponse(r *http.Request, task *storage.Task) taskResponse {
	resp := taskResponse{Task: task}
	if task.Recurrence != nil {
		resp.Description = s.engine.Describe(*task.Recurrence, r.URL.Query().Get("locale"))
	}
	return resp
}

func listOptions(r *http.Request) (storage.ListOptions, error) {
	var opts storage.ListOptions
	var err error

	if from, ok, err := queryTime(r, "from"); err != nil {
		return opts, err
	} else if ok {
		opts.DueFrom = &from
	}
	if to, ok, err := queryTime(r, "to"); err != nil {
		return opts, err
	} else if ok {
		opts.DueTo = &to
	}
	if kind := storage.TaskKind(r.URL.Query().Get("kind")); kind != "" {
		if !kind.Valid() {
			return opts, errBadRequest(nil, "unknown kind %q", kind)
		}
		opts.Kind = kind
	}
	if opts.IncludeCompleted, err = queryBool(r, "completed"); err != nil {
		return opts, err
	}
	if opts.OnlyRecurring, err = queryBool(r, "recurring"); err != nil {
		return opts, err
	}
	if opts.Limit, err = queryInt(r, "limit", 0); err != nil {
		return opts, err
	}
	if opts.Offset, err = queryInt(r, "offset", 0); err != nil {
		return opts, err
	}
	return opts, nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tasks, err := s.planner.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, s.taskResponse(r, task))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var draft planner.Draft
	if err := decodeJSON(r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.planner.Create(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", s.prefix+"/tasks/"+task.ID)
	s.writeJSON(w, http.StatusCreated, s.taskResponse(r, task))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.planner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.taskResponse(r, task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var draft planner.Draft
	if err := decodeJSON(r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.planner.Update(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.taskResponse(r, task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.planner.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.taskResponse(r, task))
}

func (s *Server) handleTaskNext(w http.ResponseWriter, r *http.Request) {
	next, err := s.planner.NextDue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nextResponse{Next: next.ToPointer()})
}

func (s *Server) handleTaskOccurrences(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	times, err := s.planner.Upcoming(r.Context(), chi.URLParam(r, "id"), count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if times == nil {
		times = []time.Time{}
	}
	s.writeJSON(w, http.StatusOK, occurrencesResponse{Occurrences: times})
}

// handleAgenda lists due times from "from" (default now): the next "limit"
// of them, or every one up to "to" when given.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	from, ok, err := queryTime(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		from = s.now()
	}
	to, bounded, err := queryTime(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultAgendaLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var entries []planner.Entry
	if bounded {
		entries, err = s.planner.Window(r.Context(), from, to)
	} else {
		entries, err = s.planner.Agenda(r.Context(), from, limit)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []planner.Entry{}
	}
	s.writeJSON(w, http.StatusOK, agendaResponse{Entries: entries})
}
