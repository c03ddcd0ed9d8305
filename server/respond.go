package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

const (
	kindBadRequest = "bad_request"
	kindInternal   = "internal"
)

// badRequest marks malformed requests: undecodable bodies, bad query values
type badRequest struct {
	msg string
	err error
}

func (e *badRequest) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *badRequest) Unwrap() error { return e.err }

func errBadRequest(err error, format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...), err: err}
}

// classify maps an error to a status code and a machine-readable kind
func classify(err error) (int, string) {
	var recErr *recurrence.Error
	var storeErr *storage.Error
	var reqErr *badRequest

	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, kindBadRequest
	case errors.As(err, &recErr):
		switch recErr.Kind {
		case recurrence.KindClockInput:
			return http.StatusBadRequest, string(recErr.Kind)
		default:
			return http.StatusUnprocessableEntity, string(recErr.Kind)
		}
	case errors.As(err, &storeErr):
		switch storeErr.Type {
		case storage.ErrNotFound:
			return http.StatusNotFound, string(storeErr.Type)
		case storage.ErrAlreadyExists:
			return http.StatusConflict, string(storeErr.Type)
		case storage.ErrInvalidInput:
			return http.StatusBadRequest, string(storeErr.Type)
		case storage.ErrUnavailable:
			return http.StatusServiceUnavailable, string(storeErr.Type)
		}
	}
	return http.StatusInternalServerError, kindInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest(err, "invalid request body")
	}
	return nil
}

// queryTime reads an RFC 3339 query parameter; absent yields ok == false
func queryTime(r *http.Request, name string) (t time.Time, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, errBadRequest(err, "invalid %s", name)
	}
	return t, true, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadRequest(err, "invalid %s", name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errBadRequest(err, "invalid %s", name)
	}
	return b, nil
}
