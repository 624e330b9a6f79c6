// hours/json.go
package hours

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FromJSON picks the Raw shape for a JSON hours value as returned by store
// APIs. Strings are Text or Coded; objects keyed by day are a DayMap (or a
// Table when the values are strings); arrays with numeric weekdays are
// Numbered, arrays of labelled rows a Table. Anything else is an error.
func FromJSON(data []byte) (Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errors.New("hours: empty value")
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("hours: decode json: %w", err)
	}
	return FromValue(v)
}

// FromValue is FromJSON for an already decoded value.
func FromValue(v any) (Raw, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, errors.New("hours: empty string")
		}
		if codedFull.MatchString(strings.Join(strings.Fields(s), "")) {
			return Coded(s), nil
		}
		return Text(s), nil
	case map[string]any:
		return fromObject(x)
	case []any:
		return fromArray(x)
	case nil:
		return nil, errors.New("hours: empty value")
	default:
		return nil, fmt.Errorf("hours: unsupported json value %T", v)
	}
}

var (
	fromKeys  = []string{"from", "open", "start", "opens", "openTime", "open_time", "startTime", "start_time"}
	toKeys    = []string{"to", "close", "end", "closes", "closeTime", "close_time", "endTime", "end_time"}
	dayKeys   = []string{"weekday", "dayOfWeek", "day_of_week", "day", "dow"}
	labelKeys = []string{"label", "day", "days", "name", "dayName", "day_name"}
	hoursKeys = []string{"hours", "time", "times", "value", "text"}
	availKeys = []string{"available", "isOpen", "is_open", "open", "enabled"}
)

func fromObject(obj map[string]any) (Raw, error) {
	dm := DayMap{}
	var table Table
	for k, v := range obj {
		if _, ok := ResolveDays(k); !ok {
			continue
		}
		switch x := v.(type) {
		case string:
			table = append(table, Row{Label: k, Hours: x})
		case map[string]any:
			r := DayRange{From: pickString(x, fromKeys...), To: pickString(x, toKeys...)}
			if b, ok := pickBool(x, "closed", "isClosed", "is_closed"); ok && b {
				r.Closed = true
			}
			if b, ok := pickBool(x, availKeys...); ok && !b {
				r.Closed = true
			}
			dm[strings.ToLower(k)] = r
			table = append(table, Row{Label: k, Hours: rangeText(r)})
		case nil:
			dm[strings.ToLower(k)] = DayRange{Closed: true}
			table = append(table, Row{Label: k, Hours: "closed"})
		}
	}
	switch {
	case len(table) == 0:
		return nil, errors.New("hours: object has no day keys")
	case len(table) == len(dm):
		return dm, nil
	default:
		sortRows(table)
		return table, nil
	}
}

func fromArray(arr []any) (Raw, error) {
	var (
		numbered Numbered
		table    Table
		texts    []string
	)
	for _, el := range arr {
		switch x := el.(type) {
		case string:
			texts = append(texts, x)
		case map[string]any:
			if wd, ok := pickNumber(x, dayKeys...); ok {
				avail := true
				if b, ok := pickBool(x, availKeys...); ok {
					avail = b
				}
				if b, ok := pickBool(x, "closed", "isClosed", "is_closed"); ok && b {
					avail = false
				}
				numbered = append(numbered, Slot{
					Weekday:   wd,
					Start:     pickString(x, fromKeys...),
					End:       pickString(x, toKeys...),
					Available: avail,
				})
				continue
			}
			label := pickString(x, labelKeys...)
			if label == "" {
				continue
			}
			hrs := pickString(x, hoursKeys...)
			if hrs == "" {
				hrs = rangeText(DayRange{From: pickString(x, fromKeys...), To: pickString(x, toKeys...)})
			}
			if b, ok := pickBool(x, "closed", "isClosed", "is_closed"); ok && b {
				hrs = "closed"
			}
			table = append(table, Row{Label: label, Hours: hrs})
		}
	}
	switch {
	case len(numbered) > 0:
		return numbered, nil
	case len(table) > 0:
		return table, nil
	case len(texts) > 0:
		return Text(strings.Join(texts, "\n")), nil
	default:
		return nil, errors.New("hours: array has no usable entries")
	}
}

var fracSeconds = regexp.MustCompile(`(\d{1,2}:\d{2}):\d{2}(?:\.\d+)?`)

func rangeText(r DayRange) string {
	if r.Closed || (r.From == "" && r.To == "") {
		return "closed"
	}
	return fracSeconds.ReplaceAllString(r.From, "$1") + " - " + fracSeconds.ReplaceAllString(r.To, "$1")
}

func sortRows(t Table) {
	// Earlier first day first; on a tie the wider day set first.
	rank := func(label string) int {
		days, ok := ResolveDays(label)
		if !ok || len(days) == 0 {
			return 1 << 10
		}
		return int(days[0])*16 + (len(allDays) - len(days))
	}
	for i := 1; i < len(t); i++ {
		for j := i; j > 0 && rank(t[j].Label) < rank(t[j-1].Label); j-- {
			t[j], t[j-1] = t[j-1], t[j]
		}
	}
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func pickBool(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

func pickNumber(m map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok {
			return int(f), true
		}
	}
	return 0, false
}
