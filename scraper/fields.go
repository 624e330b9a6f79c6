// scraper/fields.go
package scraper

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gewnthar/pharmascrape/hours"
)

// lookup walks a dotted path ("store.address.0.line1") through decoded JSON.
func lookup(v any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		switch x := cur.(type) {
		case map[string]any:
			next, ok := x[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			cur = x[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func lookupString(v any, path string) string {
	x, ok := lookup(v, path)
	if !ok {
		return ""
	}
	return asString(x)
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case []any:
		// address lines
		var parts []string
		for _, el := range x {
			if s := asString(el); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func lookupFloat(v any, path string) *float64 {
	x, ok := lookup(v, path)
	if !ok {
		return nil
	}
	if f, ok := x.(float64); ok {
		return &f
	}
	return parseFloat(asString(x))
}

// hoursFromString picks a Raw shape for hours that arrived as a single
// string, which may itself hold JSON.
func hoursFromString(s string) (hours.Raw, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		if raw, err := hours.FromJSON([]byte(s)); err == nil {
			return raw, nil
		}
	}
	return hours.FromValue(s)
}
