package recurrence

import (
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// rruleWeekdays is indexed by time.Weekday
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ToROption expresses a rule anchored at the given instant as RFC 5545
// recurrence options, so it can travel inside iCalendar data.
//
// Month-end clamping has no direct RRULE keyword; it is written as a
// BYMONTHDAY range closed by BYSETPOS=-1 (day 31 becomes 28,29,30,31 and the
// last match of each month wins). Weeks start on Sunday.
func ToROption(r Rule, anchor time.Time, zone *time.Location) (*rrule.ROption, error) {
	r, err := Validate(r)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		zone = DefaultZone
	}
	date, hour, minute := ToCivil(anchor, zone)

	opt := &rrule.ROption{
		Dtstart:  ToInstant(date, hour, minute, zone).Add(belowMinute(anchor, zone)),
		Interval: r.interval,
		Wkst:     rrule.SU,
	}

	switch r.freq {
	case Daily, Custom:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range r.daysOfWeek {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday, opt.Bysetpos = clampedMonthDays(r.dayOfMonth)
	case Yearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(date.Month)}
		opt.Bymonthday, opt.Bysetpos = clampedMonthDays(date.Day)
	}

	switch r.endType {
	case EndDate:
		opt.Until = r.endDate
	case EndCount:
		opt.Count = r.endCount
	}
	return opt, nil
}

func clampedMonthDays(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

// RRuleString renders the rule as an RRULE value (without the "RRULE:" prefix).
func RRuleString(r Rule, anchor time.Time, zone *time.Location) (string, error) {
	opt, err := ToROption(r, anchor, zone)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// FromRRuleString parses an RRULE value into a validated rule.
//
// Only the subset the rule model can express is accepted: FREQ up to YEARLY,
// INTERVAL, plain BYDAY for weekly rules, one BYMONTHDAY (or the clamped form
// written by ToROption) for monthly rules, COUNT and UNTIL. For yearly rules
// the month and day come from the anchor, so BYMONTH/BYMONTHDAY are ignored.
// Without a start date a monthly rule lacking BYMONTHDAY falls on the 1st;
// use FromRRuleStringAt when DTSTART is known.
func FromRRuleString(s string) (Rule, error) {
	return parseRRule(s, 1)
}

// FromRRuleStringAt parses an RRULE whose DTSTART is anchor. A monthly rule
// without BYMONTHDAY repeats on the anchor's day in zone, as RFC 5545 reads
// it. A zero anchor behaves like FromRRuleString.
func FromRRuleStringAt(s string, anchor time.Time, zone *time.Location) (Rule, error) {
	if anchor.IsZero() {
		return parseRRule(s, 1)
	}
	date, _, _ := ToCivil(anchor, zone)
	return parseRRule(s, date.Day)
}

func parseRRule(s string, startDay int) (Rule, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, &Error{Kind: KindInvalidRule, Message: "failed to parse RRULE", Err: err}
	}

	var r Rule
	switch opt.Freq {
	case rrule.DAILY:
		r = NewRule(Daily)
	case rrule.WEEKLY:
		r = NewRule(Weekly)
	case rrule.MONTHLY:
		r = NewRule(Monthly)
	case rrule.YEARLY:
		r = NewRule(Yearly)
	default:
		return Rule{}, invalidRule("unsupported RRULE frequency %v", opt.Freq)
	}
	if opt.Interval > 0 {
		r = r.WithInterval(opt.Interval)
	}

	if len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 ||
		len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return Rule{}, invalidRule("RRULE %q uses parts outside the rule model", s)
	}

	if len(opt.Byweekday) > 0 {
		if r.freq != Weekly {
			return Rule{}, invalidRule("BYDAY is only supported for weekly rules")
		}
		days := make([]time.Weekday, 0, len(opt.Byweekday))
		for _, wd := range opt.Byweekday {
			if wd.N() != 0 {
				return Rule{}, invalidRule("ordinal BYDAY values are not supported")
			}
			// rrule-go counts from Monday = 0
			days = append(days, time.Weekday((wd.Day()+1)%7))
		}
		r = r.WithDaysOfWeek(days...)
	}

	switch r.freq {
	case Monthly:
		day, err := monthDayFromRRule(opt.Bymonthday, opt.Bysetpos, startDay)
		if err != nil {
			return Rule{}, err
		}
		r = r.WithDayOfMonth(day)
	case Yearly:
	default:
		if len(opt.Bymonthday) > 0 || len(opt.Bymonth) > 0 || len(opt.Bysetpos) > 0 {
			return Rule{}, invalidRule("RRULE %q uses parts outside the rule model", s)
		}
	}

	switch {
	case opt.Count > 0:
		r = r.EndsAfter(opt.Count)
	case !opt.Until.IsZero():
		r = r.EndsOn(opt.Until)
	}
	return Validate(r)
}

func monthDayFromRRule(days, setpos []int, startDay int) (int, error) {
	switch {
	case len(days) == 0:
		return startDay, nil
	case len(days) == 1 && len(setpos) == 0:
		if days[0] == -1 {
			return 31, nil
		}
		if days[0] < 1 {
			return 0, invalidRule("BYMONTHDAY=%d is not supported", days[0])
		}
		return days[0], nil
	case slices.Equal(setpos, []int{-1}):
		sorted := slices.Sorted(slices.Values(days))
		for i, d := range sorted {
			if d != 28+i {
				return 0, invalidRule("BYMONTHDAY set %v is not a month-end clamp", days)
			}
		}
		return sorted[len(sorted)-1], nil
	default:
		return 0, invalidRule("BYMONTHDAY %v with BYSETPOS %v is not supported", days, setpos)
	}
}
