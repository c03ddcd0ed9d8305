// Package ics converts tasks to and from iCalendar VTODO components.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const (
	// ProductID identifies calendars written by this package
	ProductID = "-//librecur//Recurring Tasks//EN"
	// PropKind carries the task kind, which iCalendar has no property for
	PropKind = "X-LIBRECUR-KIND"

	statusNeedsAction = "NEEDS-ACTION"
	statusCompleted   = "COMPLETED"
)

// Codec encodes and decodes VTODOs. Recurrence rules are anchored in zone.
type Codec struct {
	zone *time.Location
	now  func() time.Time
}

// NewCodec creates a codec. A nil zone means recurrence.DefaultZone and a nil
// clock means time.Now; the clock only stamps DTSTAMP.
func NewCodec(zone *time.Location, now func() time.Time) *Codec {
	if zone == nil {
		zone = recurrence.DefaultZone
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{zone: zone, now: now}
}

// Component builds the VTODO for a task. DTSTART carries the series anchor,
// which the RRULE is evaluated from, and DUE the occurrence currently due.
func (c *Codec) Component(task *storage.Task) (*ical.Component, error) {
	if task.DueAt.IsZero() {
		return nil, fmt.Errorf("task %s has no due time", task.ID)
	}

	todo := ical.NewComponent(ical.CompToDo)
	todo.Props.SetText(ical.PropUID, task.ID)
	todo.Props.SetDateTime(ical.PropDateTimeStamp, c.now().UTC())
	todo.Props.SetText(ical.PropSummary, task.Title)
	if task.Notes != "" {
		todo.Props.SetText(ical.PropDescription, task.Notes)
	}
	if task.Kind != "" {
		todo.Props.SetText(PropKind, string(task.Kind))
	}
	todo.Props.SetDateTime(ical.PropDateTimeStart, task.SeriesAnchor().UTC())
	todo.Props.SetDateTime(ical.PropDue, task.DueAt.UTC())
	if !task.CreatedAt.IsZero() {
		todo.Props.SetDateTime(ical.PropCreated, task.CreatedAt.UTC())
	}
	if !task.UpdatedAt.IsZero() {
		todo.Props.SetDateTime(ical.PropLastModified, task.UpdatedAt.UTC())
	}

	if task.Completed {
		todo.Props.SetText(ical.PropStatus, statusCompleted)
		if task.CompletedAt != nil {
			todo.Props.SetDateTime(ical.PropCompleted, task.CompletedAt.UTC())
		}
	} else {
		todo.Props.SetText(ical.PropStatus, statusNeedsAction)
	}

	if task.Recurrence != nil {
		rrule, err := recurrence.RRuleString(*task.Recurrence, task.SeriesAnchor(), c.zone)
		if err != nil {
			return nil, fmt.Errorf("failed to encode recurrence of task %s: %w", task.ID, err)
		}
		// SetText would escape the ';' separators
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = rrule
		todo.Props.Set(prop)
	}

	return todo, nil
}

// Calendar wraps the tasks' VTODOs in a VCALENDAR.
func (c *Codec) Calendar(tasks ...*storage.Task) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, task := range tasks {
		todo, err := c.Component(task)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, todo)
	}
	return cal, nil
}

// Encode writes the tasks as one iCalendar stream.
func (c *Codec) Encode(w io.Writer, tasks ...*storage.Task) error {
	cal, err := c.Calendar(tasks...)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// EncodeString is Encode into a string.
func (c *Codec) EncodeString(tasks ...*storage.Task) (string, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, tasks...); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Decode reads every VTODO of every VCALENDAR in r. Other components are skipped.
func (c *Codec) Decode(r io.Reader) ([]*storage.Task, error) {
	dec := ical.NewDecoder(r)

	var tasks []*storage.Task
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}
		for _, child := range cal.Children {
			if child.Name != ical.CompToDo {
				continue
			}
			task, err := c.Task(child)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no todos found in calendar")
	}
	return tasks, nil
}

// Task converts one VTODO. A missing UID gets a fresh one. DUE and DTSTART
// stand in for each other when only one is present. RRULEs are read against
// DTSTART; those outside the rule model are rejected with the rule error.
func (c *Codec) Task(todo *ical.Component) (*storage.Task, error) {
	task := &storage.Task{Kind: storage.KindTask}

	uid, err := todo.Props.Text(ical.PropUID)
	if err != nil {
		return nil, fmt.Errorf("invalid UID: %w", err)
	}
	if uid == "" {
		uid = uuid.NewString()
	}
	task.ID = uid

	if task.Title, err = todo.Props.Text(ical.PropSummary); err != nil {
		return nil, fmt.Errorf("todo %s: invalid SUMMARY: %w", uid, err)
	}
	if task.Notes, err = todo.Props.Text(ical.PropDescription); err != nil {
		return nil, fmt.Errorf("todo %s: invalid DESCRIPTION: %w", uid, err)
	}
	if kind, _ := todo.Props.Text(PropKind); storage.TaskKind(kind).Valid() {
		task.Kind = storage.TaskKind(kind)
	}

	due, err := todo.Props.DateTime(ical.PropDue, c.zone)
	if err != nil {
		return nil, fmt.Errorf("todo %s: invalid DUE: %w", uid, err)
	}
	start, err := todo.Props.DateTime(ical.PropDateTimeStart, c.zone)
	if err != nil {
		return nil, fmt.Errorf("todo %s: invalid DTSTART: %w", uid, err)
	}
	switch {
	case due.IsZero() && start.IsZero():
		return nil, fmt.Errorf("todo %s has neither DUE nor DTSTART", uid)
	case due.IsZero():
		due = start
	case start.IsZero() || start.After(due):
		start = due
	}
	task.DueAt = due
	task.Anchor = start

	if created, err := todo.Props.DateTime(ical.PropCreated, c.zone); err == nil {
		task.CreatedAt = created
	}
	if modified, err := todo.Props.DateTime(ical.PropLastModified, c.zone); err == nil {
		task.UpdatedAt = modified
	}

	if status, _ := todo.Props.Text(ical.PropStatus); strings.EqualFold(status, statusCompleted) {
		task.Completed = true
		if completed, err := todo.Props.DateTime(ical.PropCompleted, c.zone); err == nil && !completed.IsZero() {
			task.CompletedAt = &completed
		}
	}

	if prop := todo.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		rule, err := recurrence.FromRRuleStringAt(prop.Value, task.Anchor, c.zone)
		if err != nil {
			return nil, fmt.Errorf("todo %s: %w", uid, err)
		}
		task.Recurrence = &rule
	}

	return task, nil
}
