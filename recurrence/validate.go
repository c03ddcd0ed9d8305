package recurrence

import (
	"slices"
	"time"
)

// Validate normalizes a draft rule into a valid one.
//
// Recoverable problems are repaired in place of the caller: the interval is
// raised to 1, the day of month is clamped to [1,31], bad or repeated weekdays
// are dropped, and an end condition missing its value falls back to "never".
// Only problems without a safe default produce an error, in which case the
// returned rule is the zero value. An interval longer than a century is one
// of them.
func Validate(r Rule) (Rule, error) {
	if !r.freq.Valid() {
		return Rule{}, invalidRule("unknown recurrence type %q", r.freq)
	}
	if limit := MaxInterval(r.freq); r.interval > limit {
		return Rule{}, invalidRule("interval %d exceeds %d for %s rules", r.interval, limit, r.freq)
	}
	if r.endType == EndCount && r.endCount < 0 {
		return Rule{}, invalidRule("occurrence count must be positive, got %d", r.endCount)
	}

	out := Rule{
		freq:       r.freq,
		interval:   max(r.interval, 1),
		daysOfWeek: normalizeWeekdays(r.daysOfWeek),
		dayOfMonth: min(max(r.dayOfMonth, 1), 31),
		endType:    r.endType,
	}

	switch r.endType {
	case EndDate:
		if r.endDate.IsZero() {
			out.endType = EndNever
		} else {
			out.endDate = r.endDate
		}
	case EndCount:
		if r.endCount == 0 {
			out.endType = EndNever
		} else {
			out.endCount = r.endCount
		}
	default:
		out.endType = EndNever
	}

	return out, nil
}

// MaxInterval is the longest interval accepted for the frequency, about a
// hundred years of steps.
func MaxInterval(f Frequency) int {
	switch f {
	case Weekly:
		return 5200
	case Monthly:
		return 1200
	case Yearly:
		return 100
	default:
		return 36500
	}
}

// normalizeWeekdays keeps weekdays in [0,6] once each, in ascending order.
// An empty result is returned as nil so Equal treats "no days" uniformly.
func normalizeWeekdays(days []time.Weekday) []time.Weekday {
	var seen [7]bool
	var out []time.Weekday
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}
