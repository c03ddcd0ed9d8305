package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Formatter renders rules as short sentences, e.g.
// "Repete semanalmente (seg, qua, sex), por 3 ocorrências".
// End dates are printed as calendar dates in the formatter's zone.
type Formatter struct {
	zone *time.Location
}

// NewFormatter creates a formatter for the given zone; nil means DefaultZone.
func NewFormatter(zone *time.Location) *Formatter {
	if zone == nil {
		zone = DefaultZone
	}
	return &Formatter{zone: zone}
}

// Describe never fails: unknown types produce a generic sentence and
// unrecognized locales fall back to Brazilian Portuguese.
func (f *Formatter) Describe(r Rule, locale string) string {
	pb := lookupPhrasebook(locale)
	if !r.freq.Valid() {
		return pb.fallback
	}

	interval := max(r.interval, 1)
	var sb strings.Builder
	sb.WriteString(pb.verb)
	sb.WriteByte(' ')

	switch r.freq {
	case Custom:
		sb.WriteString(fmt.Sprintf(pb.custom, cadence(pb, Daily, interval)))
	default:
		sb.WriteString(cadence(pb, r.freq, interval))
	}

	if r.freq == Weekly {
		if days := normalizeWeekdays(r.daysOfWeek); len(days) > 0 {
			names := make([]string, len(days))
			for i, d := range days {
				names[i] = pb.weekdays[d]
			}
			sb.WriteString(" (" + strings.Join(names, ", ") + ")")
		}
	}
	if r.freq == Monthly {
		sb.WriteString(", " + pb.monthDay(min(max(r.dayOfMonth, 1), 31)))
	}

	sb.WriteString(", ")
	if end, ok := r.EndDate().Get(); ok {
		sb.WriteString(pb.until(end.In(f.zone)))
	} else if n, ok := r.EndCount().Get(); ok && n > 0 {
		sb.WriteString(pb.count(n))
	} else {
		sb.WriteString(pb.never)
	}
	return sb.String()
}

func cadence(pb *phrasebook, freq Frequency, interval int) string {
	if interval == 1 {
		return pb.once[freq]
	}
	return fmt.Sprintf(pb.every, interval, pb.units[freq])
}

var defaultFormatter = NewFormatter(DefaultZone)

// Describe is Formatter.Describe in DefaultZone.
func Describe(r Rule, locale string) string {
	return defaultFormatter.Describe(r, locale)
}
