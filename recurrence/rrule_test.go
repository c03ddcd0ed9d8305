package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

// expandWithRRule runs the exported options through rrule-go so the two
// implementations can be compared.
func expandWithRRule(t *testing.T, r Rule, anchor time.Time, zone *time.Location, n int) []time.Time {
	t.Helper()

	opt, err := ToROption(r, anchor, zone)
	require.NoError(t, err)
	rr, err := rrule.NewRRule(*opt)
	require.NoError(t, err)

	next := rr.Iterator()
	var out []time.Time
	for len(out) < n {
		v, ok := next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestRRuleString(t *testing.T) {
	anchor := spTime(2024, time.January, 1, 9, 0)

	tests := []struct {
		name     string
		rule     Rule
		contains []string
	}{
		{
			name:     "Daily interval",
			rule:     NewRule(Daily).WithInterval(3),
			contains: []string{"FREQ=DAILY", "INTERVAL=3"},
		},
		{
			name:     "Weekly days and count",
			rule:     NewRule(Weekly).WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday).EndsAfter(3),
			contains: []string{"FREQ=WEEKLY", "BYDAY=MO,WE,FR", "COUNT=3", "WKST=SU"},
		},
		{
			name:     "Monthly clamped day",
			rule:     NewRule(Monthly).WithDayOfMonth(31),
			contains: []string{"FREQ=MONTHLY", "BYMONTHDAY=28,29,30,31", "BYSETPOS=-1"},
		},
		{
			name:     "Monthly plain day",
			rule:     NewRule(Monthly).WithDayOfMonth(15),
			contains: []string{"FREQ=MONTHLY", "BYMONTHDAY=15"},
		},
		{
			name:     "Yearly until",
			rule:     NewRule(Yearly).EndsOn(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
			contains: []string{"FREQ=YEARLY", "BYMONTH=1", "BYMONTHDAY=1", "UNTIL=20300101T000000Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := RRuleString(tt.rule, anchor, DefaultZone)
			require.NoError(t, err)
			for _, part := range tt.contains {
				assert.Contains(t, s, part)
			}
			assert.NotContains(t, s, "DTSTART")
		})
	}

	_, err := RRuleString(NewRule(Frequency("hourly")), anchor, DefaultZone)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestFromRRuleString_RoundTrip(t *testing.T) {
	anchor := spTime(2024, time.March, 15, 9, 0)

	rules := []Rule{
		NewRule(Daily),
		NewRule(Daily).WithInterval(10).EndsAfter(4),
		NewRule(Weekly).WithInterval(2),
		NewRule(Weekly).WithDaysOfWeek(time.Sunday, time.Tuesday, time.Saturday),
		NewRule(Monthly).WithDayOfMonth(15),
		NewRule(Monthly).WithInterval(6).WithDayOfMonth(30),
		NewRule(Monthly).WithDayOfMonth(31).EndsOn(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
		NewRule(Yearly).WithInterval(2),
	}

	for _, r := range rules {
		t.Run(r.String(), func(t *testing.T) {
			s, err := RRuleString(r, anchor, DefaultZone)
			require.NoError(t, err)

			parsed, err := FromRRuleString("RRULE:" + s)
			require.NoError(t, err)

			want, err := Validate(r)
			require.NoError(t, err)
			assert.True(t, want.Equal(parsed), "%s parsed back as %s", want, parsed)
		})
	}
}

func TestFromRRuleString_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Garbage", "not a rule"},
		{"Hourly", "FREQ=HOURLY"},
		{"Ordinal weekday", "FREQ=WEEKLY;BYDAY=1MO"},
		{"Weekday on monthly", "FREQ=MONTHLY;BYDAY=MO"},
		{"Month day on daily", "FREQ=DAILY;BYMONTHDAY=3"},
		{"Several month days", "FREQ=MONTHLY;BYMONTHDAY=1,15"},
		{"Negative month day", "FREQ=MONTHLY;BYMONTHDAY=-2"},
		{"Week numbers", "FREQ=YEARLY;BYWEEKNO=20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRRuleString(tt.input)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestFromRRuleString_LastDayOfMonth(t *testing.T) {
	r, err := FromRRuleString("FREQ=MONTHLY;BYMONTHDAY=-1")
	require.NoError(t, err)
	assert.Equal(t, 31, r.DayOfMonth())
}

func TestFromRRuleStringAt(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		anchor time.Time
		day    int
	}{
		{"Monthly takes the start day", "FREQ=MONTHLY;COUNT=3", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), 15},
		{"Start day read in the zone", "FREQ=MONTHLY", time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC), 31},
		{"Explicit month day wins", "FREQ=MONTHLY;BYMONTHDAY=5", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), 5},
		{"No start falls on the first", "FREQ=MONTHLY", time.Time{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := FromRRuleStringAt(tt.input, tt.anchor, DefaultZone)
			require.NoError(t, err)
			assert.Equal(t, tt.day, r.DayOfMonth())
		})
	}

	anchor := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	r, err := FromRRuleStringAt("RRULE:FREQ=MONTHLY;COUNT=3", anchor, DefaultZone)
	require.NoError(t, err)
	result, err := Take(r, anchor, anchor.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"2024-01-15 09:00 Mon", "2024-02-15 09:00 Thu", "2024-03-15 09:00 Fri"},
		wallClock(DefaultZone, result...))
}

func TestGenerator_MatchesRRule(t *testing.T) {
	gen := NewGenerator(time.UTC)

	tests := []struct {
		name   string
		rule   Rule
		anchor time.Time
	}{
		{"Daily", NewRule(Daily).WithInterval(3), time.Date(2024, 1, 30, 9, 0, 0, 0, time.UTC)},
		{"Weekly plain", NewRule(Weekly).WithInterval(2), time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)},
		{"Weekly days", NewRule(Weekly).WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday), time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{"Biweekly days mid-week anchor", NewRule(Weekly).WithInterval(2).WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday), time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)},
		{"Monthly clamp", NewRule(Monthly).WithDayOfMonth(31), time.Date(2023, 1, 31, 10, 0, 0, 0, time.UTC)},
		{"Monthly after anchor day", NewRule(Monthly).WithDayOfMonth(10), time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)},
		{"Yearly leap day", NewRule(Yearly), time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
		{"Daily count", NewRule(Daily).EndsAfter(5), time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{"Weekly count", NewRule(Weekly).WithDaysOfWeek(time.Tuesday, time.Thursday).EndsAfter(5), time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ours, err := gen.Take(tt.rule, tt.anchor, tt.anchor.Add(-time.Second), 12)
			require.NoError(t, err)
			theirs := expandWithRRule(t, tt.rule, tt.anchor, time.UTC, 12)

			assert.Equal(t, wallClock(time.UTC, theirs...), wallClock(time.UTC, ours...))
		})
	}
}
