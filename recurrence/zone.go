package recurrence

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultZoneName is the civil timezone rules are authored in.
const DefaultZoneName = "America/Sao_Paulo"

// DefaultZone is loaded from the embedded tz database, so generation does not
// depend on the zoneinfo of the host running it.
var DefaultZone = mustLoadZone(DefaultZoneName)

func mustLoadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("recurrence: load zone %q: %v", name, err))
	}
	return loc
}

// LoadZone resolves an IANA zone name. An empty name yields DefaultZone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == DefaultZoneName {
		return DefaultZone, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Date is a calendar date without time of day or zone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// noon anchors date arithmetic away from any DST edge.
func (d Date) noon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// AddDays normalizes overflow, so Jan 31 + 1 is Feb 1.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Date) Weekday() time.Weekday {
	return d.noon().Weekday()
}

func (d Date) Before(o Date) bool {
	return d.noon().Before(o.noon())
}

func (d Date) String() string {
	return d.noon().Format(time.DateOnly)
}

// daysBetween counts whole days from a to b; negative when b precedes a.
func daysBetween(a, b Date) int {
	return int((b.noon().Unix() - a.noon().Unix()) / 86400)
}

// DaysIn returns the length of the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ToInstant builds the instant at which the wall clock in loc shows the given
// date, hour and minute.
//
// A wall time skipped by a DST transition is moved forward by the size of the
// gap (02:30 on a spring-forward night becomes 03:30). A wall time that occurs
// twice resolves to the earlier instant. A nil loc means DefaultZone.
func ToInstant(d Date, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = DefaultZone
	}
	wall := time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, time.UTC).Unix()

	before := offsetAt(wall-86400, loc)
	after := offsetAt(wall+86400, loc)

	early := wall - int64(before)
	late := wall - int64(after)
	earlyOK := offsetAt(early, loc) == before
	lateOK := offsetAt(late, loc) == after

	var unix int64
	switch {
	case earlyOK && lateOK:
		unix = min(early, late)
	case earlyOK:
		unix = early
	case lateOK:
		unix = late
	default:
		// Gap: reading the wall time with the pre-transition offset lands past the gap.
		unix = early
	}
	return time.Unix(unix, 0).In(loc)
}

// ToCivil is the inverse of ToInstant for instants that exist in loc.
func ToCivil(t time.Time, loc *time.Location) (Date, int, int) {
	if loc == nil {
		loc = DefaultZone
	}
	lt := t.In(loc)
	return DateOf(lt), lt.Hour(), lt.Minute()
}

// belowMinute is the part of t finer than the wall-clock minute in loc.
func belowMinute(t time.Time, loc *time.Location) time.Duration {
	lt := t.In(loc)
	return time.Duration(lt.Second())*time.Second + time.Duration(lt.Nanosecond())
}

func offsetAt(unix int64, loc *time.Location) int {
	_, off := time.Unix(unix, 0).In(loc).Zone()
	return off
}
