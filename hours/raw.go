// hours/raw.go
package hours

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Raw is one source's trading hours before normalization. The set of shapes
// is closed: Text, DayMap, Coded, Table and Numbered.
type Raw interface {
	tokens() (tokens []token, skipped []string)
	shape() string
}

// Text is a free-text schedule such as "Mon-Fri 9am-5:30pm, Sat 9am-1pm".
type Text string

func (t Text) shape() string { return "text" }

func (t Text) tokens() ([]token, []string) { return tokenizeText(string(t)) }

// DayRange is one entry of a DayMap. Empty From and To mean closed.
// Equal times follow token.resolve: midnight to midnight is open all day,
// any other zero-length range is closed.
type DayRange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Closed bool   `json:"closed,omitempty"`
}

// DayMap is a structured per-day schedule keyed by lower-case day name with
// explicit 24-hour times, e.g. {"monday": {"from": "08:30:00.000", "to": "19:30:00.000"}}.
type DayMap map[string]DayRange

func (m DayMap) shape() string { return "daymap" }

func (m DayMap) tokens() ([]token, []string) {
	type entry struct {
		days []Day
		r    DayRange
	}
	var (
		entries []entry
		skipped []string
	)
	for k, r := range m {
		days, ok := ResolveDays(k)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		entries = append(entries, entry{days, r})
	}
	// Groups ("weekdays") go before single days so the specific entry wins.
	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].days) != len(entries[j].days) {
			return len(entries[i].days) > len(entries[j].days)
		}
		return entries[i].days[0] < entries[j].days[0]
	})

	toks := make([]token, 0, len(entries))
	for _, e := range entries {
		from, to := strings.TrimSpace(e.r.From), strings.TrimSpace(e.r.To)
		if e.r.Closed || (from == "" && to == "") {
			toks = append(toks, token{days: e.days, status: StatusClosed})
			continue
		}
		toks = append(toks, token{days: e.days, status: StatusOpen, open: from, close: to, strict: true})
	}
	return toks, skipped
}

// Coded is a compact day-coded string: a 2-letter day code, a 4-digit open
// and a 4-digit close, repeated with no separators ("MO09002100TU07301800").
type Coded string

var (
	codedEntry = regexp.MustCompile(`(?i)([a-z]{2})(\d{4})(\d{4})`)
	codedFull  = regexp.MustCompile(`(?i)^(?:[a-z]{2}\d{8})+$`)
)

func (c Coded) shape() string { return "coded" }

func (c Coded) tokens() ([]token, []string) {
	s := strings.Join(strings.Fields(string(c)), "")
	var (
		toks    []token
		skipped []string
		last    int
	)
	for _, loc := range codedEntry.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			skipped = append(skipped, s[last:loc[0]])
		}
		last = loc[1]
		code, open, close := s[loc[2]:loc[3]], s[loc[4]:loc[5]], s[loc[6]:loc[7]]
		d, ok := LookupDay(code)
		if !ok {
			skipped = append(skipped, s[loc[0]:loc[1]])
			continue
		}
		toks = append(toks, token{days: []Day{d}, status: StatusOpen, open: open, close: close, strict: true})
	}
	if last < len(s) {
		skipped = append(skipped, s[last:])
	}
	return toks, skipped
}

// Row is one line of a trading-hours table.
type Row struct {
	Label string `json:"label"`
	Hours string `json:"hours"`
}

// Table is a row-per-day structure where each label may be a single day,
// a range ("Mon-Fri") or a group ("Weekend").
type Table []Row

func (t Table) shape() string { return "table" }

func (t Table) tokens() ([]token, []string) {
	var (
		toks    []token
		skipped []string
	)
	for _, row := range t {
		days, ok := ResolveDays(row.Label)
		if !ok {
			// Some tables put the whole statement in one cell.
			more, skip := tokenizeText(strings.TrimSpace(row.Label + " " + row.Hours))
			toks = append(toks, more...)
			skipped = append(skipped, skip...)
			continue
		}
		tok, ok := tokenizeCell(days, row.Hours)
		if !ok {
			skipped = append(skipped, row.Label+": "+row.Hours)
			continue
		}
		toks = append(toks, tok)
	}
	return toks, skipped
}

// Slot is one entry of a Numbered schedule. Weekday counts from 0 = Sunday.
type Slot struct {
	Weekday   int
	Start     string
	End       string
	Available bool
}

// Numbered is a list of numeric-weekday slots with 24-hour start/end times.
type Numbered []Slot

var sundayFirst = [...]Day{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func (n Numbered) shape() string { return "numbered" }

func (n Numbered) tokens() ([]token, []string) {
	var (
		toks    []token
		skipped []string
	)
	for _, s := range n {
		if s.Weekday < 0 || s.Weekday >= len(sundayFirst) {
			skipped = append(skipped, fmt.Sprintf("weekday %d", s.Weekday))
			continue
		}
		d := sundayFirst[s.Weekday]
		start, end := strings.TrimSpace(s.Start), strings.TrimSpace(s.End)
		if !s.Available || start == "" || end == "" {
			toks = append(toks, token{days: []Day{d}, status: StatusClosed})
			continue
		}
		toks = append(toks, token{days: []Day{d}, status: StatusOpen, open: start, close: end, strict: true})
	}
	return toks, skipped
}
