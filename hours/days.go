// hours/days.go
package hours

import (
	"regexp"
	"strconv"
	"strings"
)

// Day is a canonical schedule key. The seven real days come first in
// Monday..Sunday order; PublicHoliday is a pseudo-day.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
	PublicHoliday
)

// Week lists the seven real days in canonical order.
var Week = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayNames = [...]string{
	Monday:        "Monday",
	Tuesday:       "Tuesday",
	Wednesday:     "Wednesday",
	Thursday:      "Thursday",
	Friday:        "Friday",
	Saturday:      "Saturday",
	Sunday:        "Sunday",
	PublicHoliday: "PublicHoliday",
}

func (d Day) String() string {
	if d < Monday || d > PublicHoliday {
		return "Day(" + strconv.Itoa(int(d)) + ")"
	}
	return dayNames[d]
}

// dayAliases is the single abbreviation table used by every tokenizer.
var dayAliases = map[string]Day{
	"m": Monday, "mo": Monday, "mon": Monday, "monday": Monday,
	"tu": Tuesday, "tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"w": Wednesday, "we": Wednesday, "wed": Wednesday, "weds": Wednesday, "wednesday": Wednesday,
	"th": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"f": Friday, "fr": Friday, "fri": Friday, "friday": Friday,
	"sa": Saturday, "sat": Saturday, "saturday": Saturday,
	"su": Sunday, "sun": Sunday, "sunday": Sunday,
	"ph": PublicHoliday, "holiday": PublicHoliday, "holidays": PublicHoliday,
	"public holiday": PublicHoliday, "public holidays": PublicHoliday,
}

var (
	weekdays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}
	weekend  = []Day{Saturday, Sunday}
)

var dayGroups = map[string][]Day{
	"weekend":         weekend,
	"weekends":        weekend,
	"weekday":         weekdays,
	"weekdays":        weekdays,
	"every day":       Week,
	"everyday":        Week,
	"daily":           Week,
	"7 days":          Week,
	"7 days a week":   Week,
	"seven days":      Week,
	"all week":        Week,
	"public holiday":  {PublicHoliday},
	"public holidays": {PublicHoliday},
	"holiday":         {PublicHoliday},
	"holidays":        {PublicHoliday},
}

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	labelRangeSep = regexp.MustCompile(`\s*(?:-|–|—|\bto\b|\bthrough\b|\bthru\b|\btill\b|\buntil\b)\s*`)
	labelListSep  = regexp.MustCompile(`\s*(?:,|&|/|\+|\band\b)\s*`)
)

func cleanLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ":.-* ")
	return spaceRun.ReplaceAllString(s, " ")
}

// LookupDay resolves a single day token ("Thurs", "mo", "Sunday.") through the
// abbreviation table. Plural forms ("Mondays") are accepted.
func LookupDay(s string) (Day, bool) {
	s = cleanLabel(s)
	if d, ok := dayAliases[s]; ok {
		return d, true
	}
	if len(s) > 3 && strings.HasSuffix(s, "s") {
		if d, ok := dayAliases[strings.TrimSuffix(s, "s")]; ok && d != PublicHoliday {
			return d, true
		}
	}
	return 0, false
}

// ExpandRange expands an inclusive day range by index. Ranges never wrap
// past Sunday: a range whose end precedes its start runs to Sunday.
func ExpandRange(from, to Day) []Day {
	if from == PublicHoliday || to == PublicHoliday {
		return nil
	}
	if to < from {
		to = Sunday
	}
	out := make([]Day, 0, int(to-from)+1)
	for d := from; d <= to; d++ {
		out = append(out, d)
	}
	return out
}

// ResolveDays turns a day label (a single day, a range, a named group or a
// list of those) into the days it covers.
func ResolveDays(label string) ([]Day, bool) {
	s := cleanLabel(label)
	if s == "" {
		return nil, false
	}
	if g, ok := dayGroups[s]; ok {
		return append([]Day(nil), g...), true
	}
	if d, ok := LookupDay(s); ok {
		return []Day{d}, true
	}

	parts := labelListSep.Split(s, -1)
	if len(parts) > 1 {
		var out []Day
		for _, p := range parts {
			days, ok := ResolveDays(p)
			if !ok {
				return nil, false
			}
			out = append(out, days...)
		}
		return out, true
	}

	ends := labelRangeSep.Split(s, -1)
	if len(ends) == 2 {
		from, okFrom := LookupDay(ends[0])
		to, okTo := LookupDay(ends[1])
		if okFrom && okTo {
			if days := ExpandRange(from, to); len(days) > 0 {
				return days, true
			}
		}
	}
	return nil, false
}
