package recurrence

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
)

// phrasebook holds the wording of one locale
type phrasebook struct {
	tag      language.Tag
	verb     string
	once     map[Frequency]string
	units    map[Frequency]string
	every    string // format taking count and unit
	custom   string // format taking the cadence phrase
	weekdays [7]string
	monthDay func(day int) string
	never    string
	until    func(t time.Time) string
	count    func(n int) string
	fallback string
}

var portuguese = &phrasebook{
	tag:  language.BrazilianPortuguese,
	verb: "Repete",
	once: map[Frequency]string{
		Daily:   "diariamente",
		Weekly:  "semanalmente",
		Monthly: "mensalmente",
		Yearly:  "anualmente",
	},
	units: map[Frequency]string{
		Daily:   "dias",
		Weekly:  "semanas",
		Monthly: "meses",
		Yearly:  "anos",
	},
	every:    "a cada %d %s",
	custom:   "de forma personalizada (%s)",
	weekdays: [7]string{"dom", "seg", "ter", "qua", "qui", "sex", "sáb"},
	monthDay: func(day int) string { return "no dia " + strconv.Itoa(day) },
	never:    "nunca termina",
	until:    func(t time.Time) string { return "até " + t.Format("02/01/2006") },
	count: func(n int) string {
		if n == 1 {
			return "por 1 ocorrência"
		}
		return fmt.Sprintf("por %d ocorrências", n)
	},
	fallback: "Repete periodicamente",
}

var english = &phrasebook{
	tag:  language.English,
	verb: "Repeats",
	once: map[Frequency]string{
		Daily:   "daily",
		Weekly:  "weekly",
		Monthly: "monthly",
		Yearly:  "yearly",
	},
	units: map[Frequency]string{
		Daily:   "days",
		Weekly:  "weeks",
		Monthly: "months",
		Yearly:  "years",
	},
	every:    "every %d %s",
	custom:   "on a custom schedule (%s)",
	weekdays: [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	monthDay: func(day int) string { return "on the " + humanize.Ordinal(day) },
	never:    "never ends",
	until:    func(t time.Time) string { return "until " + t.Format("Jan 2, 2006") },
	count: func(n int) string {
		if n == 1 {
			return "for 1 occurrence"
		}
		return fmt.Sprintf("for %d occurrences", n)
	},
	fallback: "Repeats periodically",
}

// phrasebooks are ordered by preference; the first is the fallback.
var phrasebooks = []*phrasebook{portuguese, english}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(phrasebooks))
	for i, pb := range phrasebooks {
		tags[i] = pb.tag
	}
	return language.NewMatcher(tags)
}()

// lookupPhrasebook resolves a BCP 47 locale; anything unparseable or unknown
// gets the Brazilian Portuguese wording.
func lookupPhrasebook(locale string) *phrasebook {
	tag, err := language.Parse(locale)
	if err != nil {
		return phrasebooks[0]
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(phrasebooks) {
		return phrasebooks[0]
	}
	return phrasebooks[idx]
}
