// Package xcal renders tasks as xCal (RFC 6321) documents and reads them
// back.
package xcal

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/cyp0633/librecur/internal/ics"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
)

// Namespace is the xCal namespace
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const dateTimeFormat = "2006-01-02T15:04:05Z"

// RecurElement builds a <recur> element for the rule anchored at anchor.
// Parts appear in the order RFC 6321 lists them.
func RecurElement(r recurrence.Rule, anchor time.Time, zone *time.Location) (*etree.Element, error) {
	opt, err := recurrence.ToROption(r, anchor, zone)
	if err != nil {
		return nil, err
	}

	recur := etree.NewElement("recur")
	recur.CreateElement("freq").SetText(opt.Freq.String())
	if !opt.Until.IsZero() {
		recur.CreateElement("until").SetText(opt.Until.UTC().Format(dateTimeFormat))
	}
	if opt.Count > 0 {
		recur.CreateElement("count").SetText(strconv.Itoa(opt.Count))
	}
	if opt.Interval > 1 {
		recur.CreateElement("interval").SetText(strconv.Itoa(opt.Interval))
	}
	for _, wd := range opt.Byweekday {
		recur.CreateElement("byday").SetText(wd.String())
	}
	for _, d := range opt.Bymonthday {
		recur.CreateElement("bymonthday").SetText(strconv.Itoa(d))
	}
	for _, m := range opt.Bymonth {
		recur.CreateElement("bymonth").SetText(strconv.Itoa(m))
	}
	for _, p := range opt.Bysetpos {
		recur.CreateElement("bysetpos").SetText(strconv.Itoa(p))
	}
	recur.CreateElement("wkst").SetText(opt.Wkst.String())
	return recur, nil
}

// ParseRecur reads a <recur> element back into a rule. Repeated parts are
// joined into one RRULE list before parsing. anchor is the DTSTART of the
// component, which fixes the day of monthly rules without bymonthday.
func ParseRecur(recur *etree.Element, anchor time.Time, zone *time.Location) (recurrence.Rule, error) {
	if recur == nil || recur.Tag != "recur" {
		return recurrence.Rule{}, &recurrence.Error{Kind: recurrence.KindInvalidRule, Message: "missing recur element"}
	}

	var order []string
	values := make(map[string][]string)
	for _, part := range recur.ChildElements() {
		name := strings.ToUpper(part.Tag)
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = append(values[name], strings.TrimSpace(part.Text()))
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		value := strings.Join(values[name], ",")
		if name == "UNTIL" {
			t, err := parseUntil(value)
			if err != nil {
				return recurrence.Rule{}, &recurrence.Error{Kind: recurrence.KindInvalidRule, Message: "invalid until", Err: err}
			}
			value = t.UTC().Format("20060102T150405Z")
		}
		parts = append(parts, name+"="+value)
	}
	return recurrence.FromRRuleStringAt(strings.Join(parts, ";"), anchor, zone)
}

func parseUntil(value string) (time.Time, error) {
	for _, layout := range []string{dateTimeFormat, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized until value %q", value)
}

// Document renders tasks as a complete xCal document.
func Document(tasks []*storage.Task, zone *time.Location, now time.Time) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", Namespace)
	vcal := root.CreateElement("vcalendar")
	props := vcal.CreateElement("properties")
	textProp(props, "version", "2.0")
	textProp(props, "prodid", ics.ProductID)

	components := vcal.CreateElement("components")
	for _, task := range tasks {
		if err := addTodo(components, task, zone, now); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func addTodo(parent *etree.Element, task *storage.Task, zone *time.Location, now time.Time) error {
	if task.DueAt.IsZero() {
		return fmt.Errorf("task %s has no due time", task.ID)
	}

	props := parent.CreateElement("vtodo").CreateElement("properties")
	textProp(props, "uid", task.ID)
	dateTimeProp(props, "dtstamp", now)
	textProp(props, "summary", task.Title)
	if task.Notes != "" {
		textProp(props, "description", task.Notes)
	}
	dateTimeProp(props, "dtstart", task.SeriesAnchor())
	dateTimeProp(props, "due", task.DueAt)
	if task.Completed {
		textProp(props, "status", "COMPLETED")
		if task.CompletedAt != nil {
			dateTimeProp(props, "completed", *task.CompletedAt)
		}
	} else {
		textProp(props, "status", "NEEDS-ACTION")
	}
	if task.Kind != "" {
		textProp(props, strings.ToLower(ics.PropKind), string(task.Kind))
	}

	if task.Recurrence != nil {
		recur, err := RecurElement(*task.Recurrence, task.SeriesAnchor(), zone)
		if err != nil {
			return fmt.Errorf("failed to encode recurrence of task %s: %w", task.ID, err)
		}
		props.CreateElement("rrule").AddChild(recur)
	}
	return nil
}

func textProp(parent *etree.Element, name, value string) {
	parent.CreateElement(name).CreateElement("text").SetText(value)
}

func dateTimeProp(parent *etree.Element, name string, t time.Time) {
	parent.CreateElement(name).CreateElement("date-time").SetText(t.UTC().Format(dateTimeFormat))
}

// Decode reads the vtodos of an xCal document into tasks. Floating times and
// plain dates are read in zone. It mirrors ics.Codec.Task: a missing uid gets
// a fresh one and due and dtstart stand in for each other.
func Decode(r io.Reader, zone *time.Location) ([]*storage.Task, error) {
	if zone == nil {
		zone = recurrence.DefaultZone
	}
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse xcal: %w", err)
	}

	var tasks []*storage.Task
	for _, todo := range doc.FindElements("//vtodo") {
		task, err := decodeTodo(todo, zone)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no todos found in calendar")
	}
	return tasks, nil
}

func decodeTodo(todo *etree.Element, zone *time.Location) (*storage.Task, error) {
	props := todo.SelectElement("properties")
	if props == nil {
		return nil, fmt.Errorf("vtodo without properties")
	}

	task := &storage.Task{
		ID:    propText(props, "uid"),
		Kind:  storage.KindTask,
		Title: propText(props, "summary"),
		Notes: propText(props, "description"),
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if kind := storage.TaskKind(propText(props, strings.ToLower(ics.PropKind))); kind.Valid() {
		task.Kind = kind
	}

	due, err := propTime(props, "due", zone)
	if err != nil {
		return nil, fmt.Errorf("vtodo %s: invalid due: %w", task.ID, err)
	}
	start, err := propTime(props, "dtstart", zone)
	if err != nil {
		return nil, fmt.Errorf("vtodo %s: invalid dtstart: %w", task.ID, err)
	}
	switch {
	case due.IsZero() && start.IsZero():
		return nil, fmt.Errorf("vtodo %s has neither due nor dtstart", task.ID)
	case due.IsZero():
		due = start
	case start.IsZero() || start.After(due):
		start = due
	}
	task.DueAt = due
	task.Anchor = start

	if strings.EqualFold(propText(props, "status"), "COMPLETED") {
		task.Completed = true
		if completed, err := propTime(props, "completed", zone); err == nil && !completed.IsZero() {
			task.CompletedAt = &completed
		}
	}

	if recur := props.FindElement("./rrule/recur"); recur != nil {
		rule, err := ParseRecur(recur, start, zone)
		if err != nil {
			return nil, fmt.Errorf("vtodo %s: %w", task.ID, err)
		}
		task.Recurrence = &rule
	}
	return task, nil
}

func propText(props *etree.Element, name string) string {
	if v := props.FindElement("./" + name + "/text"); v != nil {
		return strings.TrimSpace(v.Text())
	}
	return ""
}

// propTime reads a date-time or date value; a missing property is the zero
// time.
func propTime(props *etree.Element, name string, zone *time.Location) (time.Time, error) {
	prop := props.SelectElement(name)
	if prop == nil {
		return time.Time{}, nil
	}
	if v := prop.SelectElement("date-time"); v != nil {
		text := strings.TrimSpace(v.Text())
		if strings.HasSuffix(text, "Z") {
			return time.Parse(dateTimeFormat, text)
		}
		return time.ParseInLocation("2006-01-02T15:04:05", text, zone)
	}
	if v := prop.SelectElement("date"); v != nil {
		return time.ParseInLocation(time.DateOnly, strings.TrimSpace(v.Text()), zone)
	}
	return time.Time{}, fmt.Errorf("%s has no date-time or date value", name)
}
