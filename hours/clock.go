// hours/clock.go
package hours

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Meridiem marks a Clock as before or after noon.
type Meridiem int

const (
	AM Meridiem = iota
	PM
)

func (m Meridiem) String() string {
	if m == PM {
		return "PM"
	}
	return "AM"
}

// Clock is a 12-hour wall-clock time with an explicit AM/PM marker.
// Hour is always in 1..12.
type Clock struct {
	Hour     int
	Minute   int
	Meridiem Meridiem
}

// NewClock builds a Clock from a 24-hour hour (0..23) and minute.
func NewClock(hour24, minute int) Clock {
	hour24 = ((hour24 % 24) + 24) % 24
	c := Clock{Minute: minute, Meridiem: AM}
	if hour24 >= 12 {
		c.Meridiem = PM
	}
	c.Hour = hour24 % 12
	if c.Hour == 0 {
		c.Hour = 12
	}
	return c
}

// Hour24 returns the hour on a 0..23 scale.
func (c Clock) Hour24() int {
	h := c.Hour % 12
	if c.Meridiem == PM {
		h += 12
	}
	return h
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour24()*60 + c.Minute }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d %s", c.Hour, c.Minute, c.Meridiem)
}

// ParseError describes a time or schedule fragment that could not be read.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hours: cannot parse %q: %s", e.Input, e.Reason)
}

var (
	looseClock  = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?(?:[:.](\d{2})(?:\.\d+)?)?\s*(am|pm|a|p)?$`)
	strictClock = regexp.MustCompile(`^(\d{1,2}):?(\d{2})(?::(\d{2})(?:\.\d+)?)?$`)
)

// parsed carries a clock plus whether its half of the day was stated or
// implied by the notation, as opposed to guessed.
type parsed struct {
	Clock
	explicit bool
}

// ParseClock reads a human-written time: "9", "9:30", "9.30", "9am",
// "5:30 PM", "noon", "midnight" or a 24-hour "17:45[:00]". Without an
// am/pm suffix an hour above 12 (or written with a leading zero) is
// read as 24-hour, 12 is noon, 1..6 are taken as PM and 7..11 as AM.
// That last rule is a best-effort guess for closing times.
func ParseClock(s string) (Clock, error) {
	p, err := parseLoose(s)
	return p.Clock, err
}

// Parse24 reads an explicit 24-hour time such as "08:30", "0830" or
// "19:30:00.000". Hour 24 is midnight.
func Parse24(s string) (Clock, error) {
	p, err := parseStrict(s)
	return p.Clock, err
}

func normalizeClockText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("a.m.", "am", "p.m.", "pm", "a.m", "am", "p.m", "pm").Replace(s)
	return strings.TrimSpace(s)
}

func parseWord(s string) (parsed, bool) {
	switch s {
	case "noon", "midday", "12 noon", "12noon", "12 midday":
		return parsed{NewClock(12, 0), true}, true
	case "midnight", "12 midnight", "12midnight":
		return parsed{NewClock(0, 0), true}, true
	}
	return parsed{}, false
}

func parseLoose(raw string) (parsed, error) {
	s := normalizeClockText(raw)
	if p, ok := parseWord(s); ok {
		return p, nil
	}
	m := looseClock.FindStringSubmatch(s)
	if m == nil {
		return parsed{}, &ParseError{Input: raw, Reason: "not a time"}
	}
	h, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if h > 24 || minute > 59 {
		return parsed{}, &ParseError{Input: raw, Reason: "out of range"}
	}

	suffix := m[4]
	switch {
	case h > 12 || h == 0:
		// 24-hour notation wins over any suffix.
		return parsed{NewClock(h, minute), true}, nil
	case suffix == "am" || suffix == "a":
		if h == 12 {
			h = 0
		}
		return parsed{NewClock(h, minute), true}, nil
	case suffix == "pm" || suffix == "p":
		if h < 12 {
			h += 12
		}
		return parsed{NewClock(h, minute), true}, nil
	case len(m[1]) == 2 && m[1][0] == '0':
		return parsed{NewClock(h, minute), true}, nil
	case h == 12:
		return parsed{NewClock(12, minute), false}, nil
	case h <= 6:
		return parsed{NewClock(h+12, minute), false}, nil
	default:
		return parsed{NewClock(h, minute), false}, nil
	}
}

func parseStrict(raw string) (parsed, error) {
	s := strings.TrimSpace(raw)
	m := strictClock.FindStringSubmatch(s)
	if m == nil {
		// Structured feeds occasionally carry "9:00am"; accept it.
		return parseLoose(raw)
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 24 || minute > 59 || (h == 24 && minute != 0) {
		return parsed{}, &ParseError{Input: raw, Reason: "out of range"}
	}
	return parsed{NewClock(h, minute), true}, nil
}
