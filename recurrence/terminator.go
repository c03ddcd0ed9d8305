package recurrence

import "time"

// InSeries reports whether the candidate at the given 0-based position of the
// series still satisfies the rule's end condition. The anchor occurrence is
// index 0 and an end date is inclusive.
func InSeries(r Rule, anchor, candidate time.Time, index int) bool {
	switch r.endType {
	case EndDate:
		if r.endDate.IsZero() {
			return true
		}
		return !candidate.After(r.endDate)
	case EndCount:
		if r.endCount <= 0 {
			return true
		}
		return index < r.endCount
	default:
		return true
	}
}
