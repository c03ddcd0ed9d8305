/*
Package server exposes the recurrence engine and the task planner as a JSON
API that can be integrated into Go applications.

# Basic Usage

The simplest way to use this package is with the provided in-memory storage:

	svc := planner.New(memory.New(), recurrence.NewEngine())
	srv, err := server.New(svc, "/api")
	if err != nil {
		log.Fatal(err)
	}
	http.ListenAndServe(":8080", srv)

# Routes

Rule endpoints are stateless and take a rule document or an RRULE:
  - POST /recurrence/validate - normalized rule and its description
  - POST /recurrence/next - first occurrence after an instant
  - POST /recurrence/occurrences - a count of occurrences, or all up to an end
  - POST /recurrence/describe - the rule in words
  - POST /recurrence/rrule - rule document to RRULE and back
  - GET /recurrence/stats - engine cache statistics

Task endpoints go through the planner:
  - GET, POST /tasks - list and create
  - POST /tasks/import - store the VTODOs of a text/calendar body
  - GET, PUT, DELETE /tasks/{id}
  - POST /tasks/{id}/complete - advance to the next occurrence
  - GET /tasks/{id}/next, /tasks/{id}/occurrences
  - GET /tasks/{id}/ics, /tasks/{id}/xcal
  - GET /calendar.ics, /calendar.xml - every open task
  - GET /agenda - due times across tasks

# Errors

Failed requests answer with {"error": ..., "kind": ...}. Invalid rules are
422, unusable instants and malformed requests 400, unknown tasks 404 and
duplicate ids 409.

# Custom Storage Backend

To keep tasks elsewhere, implement the storage.Storage interface and hand it
to planner.New. The storagetest package holds a conformance suite.

# Authentication

WithAuthenticator puts every route behind HTTP Basic authentication. The
auth/memory package provides a simple user store.
*/
package server
