package recurrence

import (
	"iter"
	"time"

	"github.com/samber/mo"
)

// Generator computes occurrences of rules in a fixed civil timezone.
//
// Occurrences keep the wall-clock hour and minute of the anchor in that zone,
// so a task due at 09:00 stays at 09:00 across DST changes. Seconds of the
// anchor carry over unchanged. Series stop at the end of year 9999. A
// Generator holds no mutable state and is safe for concurrent use.
type Generator struct {
	zone *time.Location
}

// NewGenerator creates a generator for the given zone; nil means DefaultZone.
func NewGenerator(zone *time.Location) *Generator {
	if zone == nil {
		zone = DefaultZone
	}
	return &Generator{zone: zone}
}

// Zone returns the civil timezone the generator works in.
func (g *Generator) Zone() *time.Location {
	return g.zone
}

// Next returns the first in-series occurrence strictly after the given instant.
// An instant before the anchor is allowed and yields the anchor occurrence.
func (g *Generator) Next(r Rule, anchor, after time.Time) (mo.Option[time.Time], error) {
	s, err := g.series(r, anchor, after)
	if err != nil {
		return mo.None[time.Time](), err
	}
	i, ok := s.firstAfter(after)
	if !ok {
		return mo.None[time.Time](), nil
	}
	candidate := s.at(i)
	if !InSeries(r, anchor, candidate, i) {
		return mo.None[time.Time](), nil
	}
	return mo.Some(candidate), nil
}

// Occurrences lazily yields (index, instant) pairs strictly after the given
// instant, in increasing order, until the end condition is reached. A rule
// that never ends yields forever; the consumer decides when to stop.
func (g *Generator) Occurrences(r Rule, anchor, after time.Time) (iter.Seq2[int, time.Time], error) {
	s, err := g.series(r, anchor, after)
	if err != nil {
		return func(func(int, time.Time) bool) {}, err
	}
	return func(yield func(int, time.Time) bool) {
		first, ok := s.firstAfter(after)
		if !ok {
			return
		}
		for i := first; ; i++ {
			if s.beyondHorizon(i) {
				return
			}
			candidate := s.at(i)
			if !InSeries(r, anchor, candidate, i) {
				return
			}
			if !yield(i, candidate) {
				return
			}
		}
	}, nil
}

// Take materializes at most maxCount occurrences strictly after the given
// instant. maxCount is a hard ceiling even for rules that never end. As with
// Next, an instant before the anchor starts the list at the anchor.
func (g *Generator) Take(r Rule, anchor, after time.Time, maxCount int) ([]time.Time, error) {
	seq, err := g.Occurrences(r, anchor, after)
	if err != nil || maxCount <= 0 {
		return nil, err
	}
	out := make([]time.Time, 0, min(maxCount, 64))
	for _, t := range seq {
		out = append(out, t)
		if len(out) == maxCount {
			break
		}
	}
	return out, nil
}

var defaultGenerator = NewGenerator(DefaultZone)

// Next is Generator.Next in DefaultZone.
func Next(r Rule, anchor, after time.Time) (mo.Option[time.Time], error) {
	return defaultGenerator.Next(r, anchor, after)
}

// Take is Generator.Take in DefaultZone.
func Take(r Rule, anchor, after time.Time, maxCount int) ([]time.Time, error) {
	return defaultGenerator.Take(r, anchor, after, maxCount)
}

// Occurrences is Generator.Occurrences in DefaultZone.
func Occurrences(r Rule, anchor, after time.Time) (iter.Seq2[int, time.Time], error) {
	return defaultGenerator.Occurrences(r, anchor, after)
}

// horizonYear is the last year any series reaches.
const horizonYear = 9999

// series maps an occurrence index to its civil date. Candidates that fall
// before the anchor's date are not part of the series and take no index.
type series struct {
	freq     Frequency
	interval int
	anchor   Date
	hour     int
	minute   int
	seconds  time.Duration // below the minute, from the anchor
	loc      *time.Location

	// weekly with a weekday set
	days      []time.Weekday
	weekStart Date
	skip      int

	// monthly
	dayOfMonth int
}

func (g *Generator) series(r Rule, anchor, after time.Time) (*series, error) {
	if anchor.IsZero() {
		return nil, &Error{Kind: KindClockInput, Message: "anchor instant is not set"}
	}
	if after.IsZero() {
		return nil, &Error{Kind: KindClockInput, Message: "reference instant is not set"}
	}
	if !r.freq.Valid() {
		return nil, &Error{Kind: KindUnsupportedType, Message: "cannot generate occurrences for type " + string(r.freq)}
	}
	if limit := MaxInterval(r.freq); r.interval > limit {
		return nil, invalidRule("interval %d exceeds %d for %s rules", r.interval, limit, r.freq)
	}

	date, hour, minute := ToCivil(anchor, g.zone)
	s := &series{
		freq:     r.freq,
		interval: max(r.interval, 1),
		anchor:   date,
		hour:     hour,
		minute:   minute,
		seconds:  belowMinute(anchor, g.zone),
		loc:      g.zone,
	}

	switch r.freq {
	case Weekly:
		s.days = normalizeWeekdays(r.daysOfWeek)
		if len(s.days) > 0 {
			wd := date.Weekday()
			s.weekStart = date.AddDays(-int(wd))
			for _, d := range s.days {
				if d < wd {
					s.skip++
				}
			}
		}
	case Monthly:
		s.dayOfMonth = min(max(r.dayOfMonth, 1), 31)
		first := clampedDate(date.Year, date.Month, s.dayOfMonth)
		if first.Before(date) {
			s.skip = 1
		}
	}
	return s, nil
}

func (s *series) dateAt(i int) Date {
	switch s.freq {
	case Weekly:
		if len(s.days) == 0 {
			return s.anchor.AddDays(7 * i * s.interval)
		}
		p := i + s.skip
		week, pos := p/len(s.days), p%len(s.days)
		return s.weekStart.AddDays(7*week*s.interval + int(s.days[pos]))
	case Monthly:
		year, month := addMonths(s.anchor.Year, s.anchor.Month, (i+s.skip)*s.interval)
		return clampedDate(year, month, s.dayOfMonth)
	case Yearly:
		return clampedDate(s.anchor.Year+i*s.interval, s.anchor.Month, s.anchor.Day)
	default: // Daily, Custom
		return s.anchor.AddDays(i * s.interval)
	}
}

func (s *series) at(i int) time.Time {
	return ToInstant(s.dateAt(i), s.hour, s.minute, s.loc).Add(s.seconds)
}

func (s *series) beyondHorizon(i int) bool {
	return s.dateAt(i).Year > horizonYear
}

// estimate guesses the index of the first occurrence after the given instant.
// It only has to land within a step or two of the answer.
func (s *series) estimate(after time.Time) int {
	date, _, _ := ToCivil(after, s.loc)
	if date.Before(s.anchor) {
		return 0
	}
	var i int
	switch s.freq {
	case Weekly:
		if len(s.days) == 0 {
			i = daysBetween(s.anchor, date) / (7 * s.interval)
		} else {
			cycles := daysBetween(s.weekStart, date) / 7 / s.interval
			i = cycles*len(s.days) - s.skip
		}
	case Monthly:
		months := (date.Year-s.anchor.Year)*12 + int(date.Month) - int(s.anchor.Month)
		i = months/s.interval - s.skip
	case Yearly:
		i = (date.Year - s.anchor.Year) / s.interval
	default:
		i = daysBetween(s.anchor, date) / s.interval
	}
	return max(i, 0)
}

// firstAfter returns the smallest index whose occurrence is strictly after t,
// or false when that occurrence lies past the horizon.
func (s *series) firstAfter(t time.Time) (int, bool) {
	if date, _, _ := ToCivil(t, s.loc); date.Year > horizonYear || s.anchor.Year > horizonYear {
		return 0, false
	}
	i := s.estimate(t)
	for i > 0 && s.at(i-1).After(t) {
		i--
	}
	for !s.at(i).After(t) {
		if s.beyondHorizon(i) {
			return 0, false
		}
		i++
	}
	return i, !s.beyondHorizon(i)
}

// clampedDate pins day to the last day of shorter months (Jan 31 -> Feb 28).
func clampedDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: min(day, DaysIn(year, month))}
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	return year, time.Month(m + 1)
}
