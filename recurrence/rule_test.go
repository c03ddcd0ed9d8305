package recurrence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRule_JSON(t *testing.T) {
	endDate := time.Date(2024, 12, 31, 9, 0, 0, 0, DefaultZone)

	tests := []struct {
		name     string
		rule     Rule
		expected string
	}{
		{
			name:     "Absent fields are omitted",
			rule:     NewRule(Daily),
			expected: `{"type":"daily","interval":1,"endType":"never"}`,
		},
		{
			name:     "Weekly with count",
			rule:     NewRule(Weekly).WithInterval(2).WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday).EndsAfter(3),
			expected: `{"type":"weekly","interval":2,"daysOfWeek":[1,3,5],"endType":"count","endCount":3}`,
		},
		{
			name:     "Monthly with end date in UTC",
			rule:     NewRule(Monthly).WithDayOfMonth(31).EndsOn(endDate),
			expected: `{"type":"monthly","interval":1,"dayOfMonth":31,"endType":"date","endDate":"2024-12-31T12:00:00Z"}`,
		},
		{
			name:     "Day of month only written for monthly rules",
			rule:     NewRule(Yearly).WithDayOfMonth(12),
			expected: `{"type":"yearly","interval":1,"endType":"never"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.rule)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))

			var decoded Rule
			require.NoError(t, json.Unmarshal(data, &decoded))
			normalized, err := Validate(decoded)
			require.NoError(t, err)
			want, err := Validate(tt.rule)
			require.NoError(t, err)
			if tt.rule.Type() != Monthly {
				want = want.WithDayOfMonth(1)
			}
			assert.True(t, want.Equal(normalized), "expected %s, got %s", want, normalized)
		})
	}
}

func TestRule_UnmarshalJSONKeepsUnknownValues(t *testing.T) {
	var r Rule
	require.NoError(t, json.Unmarshal([]byte(`{"type":"hourly","interval":0,"endType":"count"}`), &r))

	assert.Equal(t, Frequency("hourly"), r.Type())
	assert.Equal(t, 0, r.Interval())

	_, err := Validate(r)
	assert.ErrorIs(t, err, ErrInvalidRule)

	assert.Error(t, json.Unmarshal([]byte(`{"type":`), &r))
}

func TestRule_YAML(t *testing.T) {
	input := `
type: weekly
interval: 1
daysOfWeek: [1, 3, 5]
endType: count
endCount: 3
`
	var r Rule
	require.NoError(t, yaml.Unmarshal([]byte(input), &r))

	expected := NewRule(Weekly).WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday).EndsAfter(3)
	assert.True(t, expected.Equal(r), "got %s", r)

	out, err := yaml.Marshal(expected)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "endDate")
	assert.NotContains(t, string(out), "dayOfMonth")

	var again Rule
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.True(t, expected.Equal(again))
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "weekly/1;days=1,3,5;end=count:3",
		NewRule(Weekly).WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday).EndsAfter(3).String())
	assert.Equal(t, "monthly/2;dom=31;end=never", NewRule(Monthly).WithInterval(2).WithDayOfMonth(31).String())
	assert.Equal(t, "daily/1;end=date:2024-01-01T00:00:00Z",
		NewRule(Daily).EndsOn(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).String())
}
