package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/recurrence"
	authmemory "github.com/cyp0633/librecur/server/auth/memory"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/cyp0633/librecur/server/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 1, 8, 0, 0, 0, recurrence.DefaultZone)

func setupTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	seq := 0
	p := planner.New(memory.New(), recurrence.NewEngineWithoutCache(),
		planner.WithClock(func() time.Time { return fixedNow }),
		planner.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("t%d", seq)
		}))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	srv, err := New(p, "/api", opts...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestNew(t *testing.T) {
	_, err := New(nil, "/api")
	assert.Error(t, err)

	p := planner.New(memory.New(), recurrence.NewEngineWithoutCache())
	for prefix, expected := range map[string]string{"": "", "/": "", "v1": "/v1", "/v1/": "/v1"} {
		srv, err := New(p, prefix)
		require.NoError(t, err)
		assert.Equal(t, expected, srv.Prefix(), "prefix %q", prefix)
	}

	srv, err := New(p, "")
	require.NoError(t, err)
	w := do(t, srv, http.MethodGet, "/agenda", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Auth(t *testing.T) {
	users, err := authmemory.FromEntries([]string{"alice:secret", "viewer:pw:ro"})
	require.NoError(t, err)
	srv := setupTestServer(t, WithAuthenticator(users, "tasks"))

	request := func(method, path, user, password, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if user != "" {
			req.SetBasicAuth(user, password)
		}
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		return w
	}
	draft := `{"title":"Gym","dueAt":"2024-01-02T09:00:00-03:00"}`

	w := request(http.MethodGet, "/api/agenda", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="tasks"`, w.Header().Get("WWW-Authenticate"))

	w = request(http.MethodGet, "/api/agenda", "alice", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(http.MethodPost, "/api/tasks", "alice", "secret", draft)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = request(http.MethodGet, "/api/tasks", "viewer", "pw", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(http.MethodPost, "/api/tasks", "viewer", "pw", draft)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServer_RecurrenceEndpoints(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		expected string
	}{
		{
			name:     "Validate normalizes",
			path:     "/api/recurrence/validate",
			body:     `{"rule":{"type":"weekly","interval":0,"daysOfWeek":[5,1,1],"endType":"count","endCount":3}}`,
			status:   http.StatusOK,
			expected: `{"rule":{"type":"weekly","interval":1,"daysOfWeek":[1,5],"endType":"count","endCount":3},"description":"Repete semanalmente (seg, sex), por 3 ocorrências"}`,
		},
		{
			name:     "Validate rejects unknown type",
			path:     "/api/recurrence/validate",
			body:     `{"rule":{"type":"hourly","interval":1,"endType":"never"}}`,
			status:   http.StatusUnprocessableEntity,
			expected: `{"error":"invalid_rule: unknown recurrence type \"hourly\"","kind":"invalid_rule"}`,
		},
		{
			name:   "Malformed body",
			path:   "/api/recurrence/validate",
			body:   `{"rule":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Unknown field",
			path:   "/api/recurrence/validate",
			body:   `{"rule":{"type":"daily","interval":1,"endType":"never"},"colour":"red"}`,
			status: http.StatusBadRequest,
		},
		{
			name:     "Missing rule",
			path:     "/api/recurrence/next",
			body:     `{}`,
			status:   http.StatusBadRequest,
			expected: `{"error":"rule or rrule is required","kind":"bad_request"}`,
		},
		{
			name:     "Next",
			path:     "/api/recurrence/next",
			body:     `{"rule":{"type":"daily","interval":1,"endType":"never"},"anchor":"2024-01-01T09:00:00-03:00","after":"2024-01-05T12:00:00-03:00"}`,
			status:   http.StatusOK,
			expected: `{"next":"2024-01-06T09:00:00-03:00"}`,
		},
		{
			name:     "Next exhausted",
			path:     "/api/recurrence/next",
			body:     `{"rule":{"type":"daily","interval":1,"endType":"count","endCount":1},"anchor":"2024-01-01T09:00:00-03:00","after":"2024-01-05T12:00:00-03:00"}`,
			status:   http.StatusOK,
			expected: `{"next":null}`,
		},
		{
			name:     "Next without anchor",
			path:     "/api/recurrence/next",
			body:     `{"rule":{"type":"daily","interval":1,"endType":"never"},"after":"2024-01-05T12:00:00-03:00"}`,
			status:   http.StatusBadRequest,
			expected: `{"error":"clock_input: anchor instant is not set","kind":"clock_input"}`,
		},
		{
			name:     "Occurrences by count",
			path:     "/api/recurrence/occurrences",
			body:     `{"rule":{"type":"weekly","interval":1,"daysOfWeek":[1],"endType":"never"},"anchor":"2024-01-01T09:00:00-03:00","after":"2024-01-01T08:59:00-03:00","count":3}`,
			status:   http.StatusOK,
			expected: `{"occurrences":["2024-01-01T09:00:00-03:00","2024-01-08T09:00:00-03:00","2024-01-15T09:00:00-03:00"]}`,
		},
		{
			name:     "Occurrences up to end",
			path:     "/api/recurrence/occurrences",
			body:     `{"rule":{"type":"daily","interval":1,"endType":"never"},"anchor":"2024-01-01T09:00:00-03:00","after":"2024-01-01T09:00:00-03:00","end":"2024-01-03T09:00:00-03:00"}`,
			status:   http.StatusOK,
			expected: `{"occurrences":["2024-01-02T09:00:00-03:00","2024-01-03T09:00:00-03:00"]}`,
		},
		{
			name:     "Occurrences after the end of the series",
			path:     "/api/recurrence/occurrences",
			body:     `{"rule":{"type":"daily","interval":1,"endType":"count","endCount":2},"anchor":"2024-01-01T09:00:00-03:00","after":"2024-02-01T00:00:00-03:00","count":5}`,
			status:   http.StatusOK,
			expected: `{"occurrences":[]}`,
		},
		{
			name:   "Occurrences need a bound",
			path:   "/api/recurrence/occurrences",
			body:   `{"rule":{"type":"daily","interval":1,"endType":"never"},"anchor":"2024-01-01T09:00:00-03:00","after":"2024-01-01T09:00:00-03:00"}`,
			status: http.StatusBadRequest,
		},
		{
			name:     "Describe in English",
			path:     "/api/recurrence/describe",
			body:     `{"rule":{"type":"monthly","interval":1,"dayOfMonth":22,"endType":"count","endCount":1},"locale":"en-US"}`,
			status:   http.StatusOK,
			expected: `{"description":"Repeats monthly, on the 22nd, for 1 occurrence"}`,
		},
		{
			name:     "RRULE string to rule",
			path:     "/api/recurrence/rrule",
			body:     `{"rrule":"RRULE:FREQ=WEEKLY;BYDAY=TU,TH;COUNT=4","anchor":"2024-01-02T19:00:00-03:00"}`,
			status:   http.StatusOK,
			expected: `{"rule":{"type":"weekly","interval":1,"daysOfWeek":[2,4],"endType":"count","endCount":4},"description":"Repete semanalmente (ter, qui), por 4 ocorrências","rrule":"FREQ=WEEKLY;INTERVAL=1;WKST=SU;COUNT=4;BYDAY=TU,TH"}`,
		},
		{
			name:     "Monthly RRULE repeats on the anchor day",
			path:     "/api/recurrence/next",
			body:     `{"rrule":"FREQ=MONTHLY","anchor":"2024-01-15T09:00:00-03:00","after":"2024-01-15T09:00:00-03:00"}`,
			status:   http.StatusOK,
			expected: `{"next":"2024-02-15T09:00:00-03:00"}`,
		},
		{
			name:   "Interval past a century",
			path:   "/api/recurrence/occurrences",
			body:   `{"rule":{"type":"yearly","interval":1099511627776,"endType":"never"},"anchor":"2024-01-10T09:00:00-03:00","after":"2024-01-10T08:59:00-03:00","count":3}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "Unsupported RRULE",
			path:   "/api/recurrence/rrule",
			body:   `{"rrule":"FREQ=HOURLY"}`,
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, "body: %s", w.Body.String())
			assert.Equal(t, mimeTypeJSON, w.Header().Get(headerContentType))
			if tt.expected != "" {
				assert.JSONEq(t, tt.expected, w.Body.String())
			}
			if tt.status >= 400 {
				body := decode[errorResponse](t, w)
				assert.NotEmpty(t, body.Kind)
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestServer_RRuleFromRule(t *testing.T) {
	srv := setupTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/recurrence/rrule",
		`{"rule":{"type":"monthly","interval":2,"dayOfMonth":15,"endType":"never"},"anchor":"2024-01-15T09:00:00-03:00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[ruleResponse](t, w)
	assert.Contains(t, body.RRule, "FREQ=MONTHLY")
	assert.Contains(t, body.RRule, "INTERVAL=2")
	assert.Contains(t, body.RRule, "BYMONTHDAY=15")
	assert.Equal(t, "Repete a cada 2 meses, no dia 15, nunca termina", body.Description)
}

func TestServer_Stats(t *testing.T) {
	srv := setupTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/recurrence/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["cacheEnabled"])
	assert.Equal(t, recurrence.DefaultZoneName, body["zone"])
	assert.EqualValues(t, recurrence.DisabledCacheConfig.MaxTakeCount, body["maxTake"])
}

func TestServer_TaskLifecycle(t *testing.T) {
	var logs bytes.Buffer
	srv := setupTestServer(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	// Create a Mon/Wed/Fri habit limited to four occurrences
	w := do(t, srv, http.MethodPost, "/api/tasks", `{
		"kind": "habit",
		"title": "Gym",
		"dueAt": "2024-01-01T18:00:00-03:00",
		"recurrence": {"type": "weekly", "interval": 1, "daysOfWeek": [1, 3, 5], "endType": "count", "endCount": 4}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/tasks/t1", w.Header().Get("Location"))
	created := decode[map[string]any](t, w)
	assert.Equal(t, "t1", created["id"])
	assert.Equal(t, "Repete semanalmente (seg, qua, sex), por 4 ocorrências", created["description"])
	assert.Contains(t, logs.String(), "received request")

	w = do(t, srv, http.MethodGet, "/api/tasks/t1?locale=en", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Repeats weekly (Mon, Wed, Fri), for 4 occurrences", decode[map[string]any](t, w)["description"])

	w = do(t, srv, http.MethodGet, "/api/tasks/t1/occurrences?count=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"occurrences":[
		"2024-01-01T18:00:00-03:00",
		"2024-01-03T18:00:00-03:00",
		"2024-01-05T18:00:00-03:00",
		"2024-01-08T18:00:00-03:00"
	]}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/tasks/t1/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"next":"2024-01-01T18:00:00-03:00"}`, w.Body.String())

	var due []string
	for i := 0; i < 3; i++ {
		w = do(t, srv, http.MethodPost, "/api/tasks/t1/complete", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		task := decode[storage.Task](t, w)
		assert.False(t, task.Completed)
		due = append(due, task.DueAt.In(recurrence.DefaultZone).Format("Mon 02"))
	}
	assert.Equal(t, []string{"Wed 03", "Fri 05", "Mon 08"}, due)

	w = do(t, srv, http.MethodPost, "/api/tasks/t1/complete", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[storage.Task](t, w).Completed)

	w = do(t, srv, http.MethodGet, "/api/tasks/t1/next", "")
	assert.JSONEq(t, `{"next":null}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/tasks", "")
	assert.JSONEq(t, `[]`, w.Body.String())
	w = do(t, srv, http.MethodGet, "/api/tasks?completed=true", "")
	assert.Len(t, decode[[]storage.Task](t, w), 1)

	w = do(t, srv, http.MethodPut, "/api/tasks/t1", `{"title":"Gym","dueAt":"2024-01-10T18:00:00-03:00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[storage.Task](t, w).Recurrence)

	w = do(t, srv, http.MethodDelete, "/api/tasks/t1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/api/tasks/t1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, w).Kind)
}

func TestServer_TaskErrors(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"Invalid rule", http.MethodPost, "/api/tasks", `{"title":"x","dueAt":"2024-01-01T09:00:00Z","recurrence":{"type":"hourly","interval":1,"endType":"never"}}`, http.StatusUnprocessableEntity, "invalid_rule"},
		{"Missing title", http.MethodPost, "/api/tasks", `{"dueAt":"2024-01-01T09:00:00Z"}`, http.StatusBadRequest, "invalid_input"},
		{"Bad JSON", http.MethodPost, "/api/tasks", `[`, http.StatusBadRequest, "bad_request"},
		{"Unknown task", http.MethodPut, "/api/tasks/nope", `{"title":"x","dueAt":"2024-01-01T09:00:00Z"}`, http.StatusNotFound, "not_found"},
		{"Complete unknown task", http.MethodPost, "/api/tasks/nope/complete", "", http.StatusNotFound, "not_found"},
		{"Bad list filter", http.MethodGet, "/api/tasks?from=yesterday", "", http.StatusBadRequest, "bad_request"},
		{"Bad kind filter", http.MethodGet, "/api/tasks?kind=event", "", http.StatusBadRequest, "bad_request"},
		{"Bad limit", http.MethodGet, "/api/agenda?limit=-1", "", http.StatusBadRequest, "bad_request"},
		{"Inverted window", http.MethodGet, "/api/agenda?from=2024-01-02T00:00:00Z&to=2024-01-01T00:00:00Z", "", http.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decode[errorResponse](t, w).Kind)
		})
	}
}

func TestServer_Agenda(t *testing.T) {
	srv := setupTestServer(t)

	for _, body := range []string{
		`{"kind":"habit","title":"Walk","dueAt":"2024-01-01T09:00:00-03:00","recurrence":{"type":"daily","interval":2,"endType":"never"}}`,
		`{"kind":"countdown","title":"Exam","dueAt":"2024-01-02T14:00:00-03:00"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/tasks", body).Code)
	}

	titles := func(w *httptest.ResponseRecorder) []string {
		var out []string
		for _, e := range decode[agendaResponse](t, w).Entries {
			out = append(out, e.At.In(recurrence.DefaultZone).Format("02 15:04 ")+e.Title)
		}
		return out
	}

	// from defaults to the server clock
	w := do(t, srv, http.MethodGet, "/api/agenda?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"01 09:00 Walk", "02 14:00 Exam", "03 09:00 Walk"}, titles(w))

	w = do(t, srv, http.MethodGet, "/api/agenda?from=2024-01-03T10:00:00-03:00&to=2024-01-07T09:00:00-03:00", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"05 09:00 Walk", "07 09:00 Walk"}, titles(w))

	w = do(t, srv, http.MethodGet, "/api/agenda?from=2024-01-03T10:00:00-03:00&to=2024-01-04T09:00:00-03:00", "")
	assert.JSONEq(t, `{"entries":[]}`, w.Body.String())
}

func TestServer_CalendarExport(t *testing.T) {
	srv := setupTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/tasks",
		`{"title":"Rent","dueAt":"2024-01-31T09:00:00-03:00","recurrence":{"type":"monthly","interval":1,"dayOfMonth":31,"endType":"never"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/tasks/t1/ics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mimeTypeCalendar, w.Header().Get(headerContentType))
	assert.Contains(t, w.Body.String(), "BEGIN:VTODO")
	assert.Contains(t, w.Body.String(), "UID:t1")
	assert.Contains(t, w.Body.String(), "RRULE:FREQ=MONTHLY")

	w = do(t, srv, http.MethodGet, "/api/calendar.ics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), "BEGIN:VTODO"))

	for _, path := range []string{"/api/tasks/t1/xcal", "/api/calendar.xml"} {
		w = do(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, mimeTypeXCal, w.Header().Get(headerContentType))

		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(w.Body.Bytes()))
		freq := doc.FindElement("//vtodo/properties/rrule/recur/freq")
		require.NotNil(t, freq, path)
		assert.Equal(t, "MONTHLY", freq.Text())
	}

	w = do(t, srv, http.MethodGet, "/api/tasks/nope/ics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Import(t *testing.T) {
	srv := setupTestServer(t)
	calendar := func(lines ...string) string {
		head := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//Example//EN"}
		return strings.Join(append(append(head, lines...), "END:VCALENDAR", ""), "\r\n")
	}

	body := calendar(
		"BEGIN:VTODO",
		"UID:standup",
		"DTSTAMP:20240101T000000Z",
		"DUE:20240102T120000Z",
		"SUMMARY:Standup",
		"RRULE:FREQ=WEEKLY;BYDAY=TU,TH",
		"END:VTODO",
	)

	w := do(t, srv, http.MethodPost, "/api/tasks/import", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"created":1,"updated":0}`, w.Body.String())

	w = do(t, srv, http.MethodPost, "/api/tasks/import", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"created":0,"updated":1}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/tasks/standup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Repete semanalmente (ter, qui), nunca termina", decode[map[string]any](t, w)["description"])

	w = do(t, srv, http.MethodPost, "/api/tasks/import", "not a calendar")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, kindBadRequest, decode[errorResponse](t, w).Kind)

	w = do(t, srv, http.MethodPost, "/api/tasks/import", calendar(
		"BEGIN:VTODO", "UID:x", "DTSTAMP:20240101T000000Z", "DUE:20240102T120000Z", "RRULE:FREQ=MINUTELY", "END:VTODO"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServer_ImportXCal(t *testing.T) {
	srv := setupTestServer(t)
	importXCal := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/import", strings.NewReader(body))
		req.Header.Set(headerContentType, mimeTypeXCal)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		return w
	}

	w := importXCal(`<icalendar xmlns="urn:ietf:params:xml:ns:icalendar-2.0"><vcalendar><components>
<vtodo><properties>
  <uid><text>rent</text></uid>
  <summary><text>Pay rent</text></summary>
  <dtstart><date-time>2024-01-15T12:00:00Z</date-time></dtstart>
  <rrule><recur><freq>MONTHLY</freq></recur></rrule>
</properties></vtodo>
</components></vcalendar></icalendar>`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"created":1,"updated":0}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/tasks/rent/occurrences?count=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "2024-01-15T09:00:00-03:00")
	assert.Contains(t, w.Body.String(), "2024-02-15T09:00:00-03:00")

	w = importXCal("<icalendar/>")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = importXCal(`<icalendar><vcalendar><components><vtodo><properties><due><date>2024-01-01</date></due><rrule><recur><freq>HOURLY</freq></recur></rrule></properties></vtodo></components></vcalendar></icalendar>`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"Bad request wins over its cause", errBadRequest(recurrence.ErrInvalidRule, "bad"), http.StatusBadRequest, kindBadRequest},
		{"Invalid rule", fmt.Errorf("wrapped: %w", recurrence.ErrInvalidRule), http.StatusUnprocessableEntity, "invalid_rule"},
		{"Unsupported type", recurrence.ErrUnsupportedType, http.StatusUnprocessableEntity, "unsupported_type"},
		{"Clock input", recurrence.ErrClockInput, http.StatusBadRequest, "clock_input"},
		{"Conflict", &storage.Error{Type: storage.ErrAlreadyExists}, http.StatusConflict, "already_exists"},
		{"Unavailable", &storage.Error{Type: storage.ErrUnavailable}, http.StatusServiceUnavailable, "unavailable"},
		{"Anything else", errors.New("boom"), http.StatusInternalServerError, kindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
