package recurrence

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

// Frequency is the cadence unit of a rule
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	// Custom behaves like Daily; the interval still applies.
	Custom Frequency = "custom"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly, Custom:
		return true
	default:
		return false
	}
}

// EndType selects how a series terminates
type EndType string

const (
	EndNever EndType = "never"
	EndDate  EndType = "date"
	EndCount EndType = "count"
)

// Valid reports whether e is one of the known end types.
func (e EndType) Valid() bool {
	switch e {
	case EndNever, EndDate, EndCount:
		return true
	default:
		return false
	}
}

// Rule is an immutable description of a repeating schedule.
//
// The zero value is not a usable rule; build one with NewRule and the With*
// methods, then pass it through Validate before handing it to the generator.
// Every With* method returns a modified copy and leaves the receiver untouched.
type Rule struct {
	freq       Frequency
	interval   int
	daysOfWeek []time.Weekday
	dayOfMonth int
	endType    EndType
	endDate    time.Time
	endCount   int
}

// NewRule creates a rule repeating every single unit of freq, forever.
func NewRule(freq Frequency) Rule {
	return Rule{
		freq:       freq,
		interval:   1,
		dayOfMonth: 1,
		endType:    EndNever,
	}
}

func (r Rule) Type() Frequency  { return r.freq }
func (r Rule) Interval() int    { return r.interval }
func (r Rule) DayOfMonth() int  { return r.dayOfMonth }
func (r Rule) EndType() EndType { return r.endType }

// DaysOfWeek returns a copy of the weekday set; 0 is Sunday.
func (r Rule) DaysOfWeek() []time.Weekday {
	return slices.Clone(r.daysOfWeek)
}

// EndDate is present only when the rule ends on a date.
func (r Rule) EndDate() mo.Option[time.Time] {
	if r.endType != EndDate || r.endDate.IsZero() {
		return mo.None[time.Time]()
	}
	return mo.Some(r.endDate)
}

// EndCount is present only when the rule ends after a number of occurrences.
func (r Rule) EndCount() mo.Option[int] {
	if r.endType != EndCount || r.endCount == 0 {
		return mo.None[int]()
	}
	return mo.Some(r.endCount)
}

func (r Rule) WithType(freq Frequency) Rule {
	r.daysOfWeek = slices.Clone(r.daysOfWeek)
	r.freq = freq
	return r
}

func (r Rule) WithInterval(n int) Rule {
	r.daysOfWeek = slices.Clone(r.daysOfWeek)
	r.interval = n
	return r
}

func (r Rule) WithDaysOfWeek(days ...time.Weekday) Rule {
	r.daysOfWeek = slices.Clone(days)
	return r
}

func (r Rule) WithDayOfMonth(day int) Rule {
	r.daysOfWeek = slices.Clone(r.daysOfWeek)
	r.dayOfMonth = day
	return r
}

// EndsNever drops any end condition.
func (r Rule) EndsNever() Rule {
	r.daysOfWeek = slices.Clone(r.daysOfWeek)
	r.endType = EndNever
	r.endDate = time.Time{}
	r.endCount = 0
	return r
}

// EndsOn makes the series stop after the given instant (inclusive).
func (r Rule) EndsOn(t time.Time) Rule {
	r.daysOfWeek = slices.Clone(r.daysOfWeek)
	r.endType = EndDate
	r.endDate = t
	r.endCount = 0
	return r
}

// EndsAfter limits the series to n occurrences, the first one included.
func (r Rule) EndsAfter(n int) Rule {
	r.daysOfWeek = slices.Clone(r.daysOfWeek)
	r.endType = EndCount
	r.endCount = n
	r.endDate = time.Time{}
	return r
}

// Equal reports whether two rules describe the same schedule field by field.
func (r Rule) Equal(o Rule) bool {
	return r.freq == o.freq &&
		r.interval == o.interval &&
		slices.Equal(r.daysOfWeek, o.daysOfWeek) &&
		r.dayOfMonth == o.dayOfMonth &&
		r.endType == o.endType &&
		r.endDate.Equal(o.endDate) &&
		r.endCount == o.endCount
}

// String renders a compact canonical form, e.g. "weekly/1;days=1,3,5;end=count:3".
func (r Rule) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%d", r.freq, r.interval)
	if len(r.daysOfWeek) > 0 {
		days := make([]string, len(r.daysOfWeek))
		for i, d := range r.daysOfWeek {
			days[i] = strconv.Itoa(int(d))
		}
		sb.WriteString(";days=" + strings.Join(days, ","))
	}
	if r.freq == Monthly {
		fmt.Fprintf(&sb, ";dom=%d", r.dayOfMonth)
	}
	switch r.endType {
	case EndDate:
		sb.WriteString(";end=date:" + r.endDate.UTC().Format(time.RFC3339))
	case EndCount:
		fmt.Fprintf(&sb, ";end=count:%d", r.endCount)
	default:
		sb.WriteString(";end=" + string(r.endType))
	}
	return sb.String()
}

// ruleDocument is the persisted shape of a rule. Absent optional fields are omitted.
type ruleDocument struct {
	Type       Frequency  `json:"type" yaml:"type"`
	Interval   int        `json:"interval" yaml:"interval"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty" yaml:"daysOfWeek,omitempty"`
	DayOfMonth int        `json:"dayOfMonth,omitempty" yaml:"dayOfMonth,omitempty"`
	EndType    EndType    `json:"endType" yaml:"endType"`
	EndDate    *time.Time `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	EndCount   int        `json:"endCount,omitempty" yaml:"endCount,omitempty"`
}

func (r Rule) document() ruleDocument {
	doc := ruleDocument{
		Type:     r.freq,
		Interval: r.interval,
		EndType:  r.endType,
	}
	for _, d := range r.daysOfWeek {
		doc.DaysOfWeek = append(doc.DaysOfWeek, int(d))
	}
	if r.freq == Monthly {
		doc.DayOfMonth = r.dayOfMonth
	}
	if end, ok := r.EndDate().Get(); ok {
		end = end.UTC()
		doc.EndDate = &end
	}
	if count, ok := r.EndCount().Get(); ok {
		doc.EndCount = count
	}
	return doc
}

func (doc ruleDocument) rule() Rule {
	r := Rule{
		freq:       doc.Type,
		interval:   doc.Interval,
		dayOfMonth: doc.DayOfMonth,
		endType:    doc.EndType,
		endCount:   doc.EndCount,
	}
	if r.dayOfMonth == 0 {
		// only monthly rules write the field
		r.dayOfMonth = 1
	}
	for _, d := range doc.DaysOfWeek {
		r.daysOfWeek = append(r.daysOfWeek, time.Weekday(d))
	}
	if doc.EndDate != nil {
		r.endDate = *doc.EndDate
	}
	return r
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.document())
}

// UnmarshalJSON accepts any well-formed document; unknown types and
// out-of-range values are kept so that Validate can report or repair them.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode recurrence rule: %w", err)
	}
	*r = doc.rule()
	return nil
}

func (r Rule) MarshalYAML() (interface{}, error) {
	return r.document(), nil
}

func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	var doc ruleDocument
	if err := value.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode recurrence rule: %w", err)
	}
	*r = doc.rule()
	return nil
}
