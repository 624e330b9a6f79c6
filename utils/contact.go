// utils/contact.go
package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	phoneSplit = regexp.MustCompile(`(?i)\s*(?:/|,|;|\bor\b|\bext\.?\b|\bx\b)\s*`)
	nonDigit   = regexp.MustCompile(`\D`)
	emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// FormatPhone renders an Australian phone or fax number in display form:
// "(02) 9876 5432", "0412 345 678", "1300 123 456" or "13 12 34". Numbers
// that fit none of those come back trimmed but otherwise untouched. Only the
// first number of a list ("02 1234 5678 / 02 8765 4321") is kept.
func FormatPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	first := strings.TrimSpace(phoneSplit.Split(raw, 2)[0])
	d := nonDigit.ReplaceAllString(first, "")
	if d == "" {
		return ""
	}
	if strings.HasPrefix(d, "61") && len(d) == 11 {
		d = "0" + d[2:]
	}
	if strings.HasPrefix(d, "610") && len(d) == 12 {
		d = d[2:]
	}

	switch {
	case len(d) == 10 && (strings.HasPrefix(d, "1300") || strings.HasPrefix(d, "1800") || strings.HasPrefix(d, "1900")):
		return d[:4] + " " + d[4:7] + " " + d[7:]
	case len(d) == 10 && strings.HasPrefix(d, "04"), len(d) == 10 && strings.HasPrefix(d, "05"):
		return d[:4] + " " + d[4:7] + " " + d[7:]
	case len(d) == 10 && d[0] == '0':
		return "(" + d[:2] + ") " + d[2:6] + " " + d[6:]
	case len(d) == 9 && strings.ContainsRune("2378", rune(d[0])):
		// Area code written without the trunk zero.
		return "(0" + d[:1] + ") " + d[1:5] + " " + d[5:]
	case len(d) == 6 && strings.HasPrefix(d, "13"):
		return d[:2] + " " + d[2:4] + " " + d[4:]
	case len(d) == 8:
		return d[:4] + " " + d[4:]
	}
	return first
}

// CleanEmail lower-cases an address and drops a mailto: prefix. Values that
// do not look like an email address return "".
func CleanEmail(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "mailto:")
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if !emailShape.MatchString(s) {
		return ""
	}
	return s
}

// CleanWebsite returns an absolute http(s) URL or "".
func CleanWebsite(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	} else if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !strings.Contains(u.Host, ".") {
		return ""
	}
	return u.String()
}

// ValidCoordinates reports whether lat/lon form a usable position: both set,
// in range, and not the 0,0 placeholder some feeds emit.
func ValidCoordinates(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return false
	}
	return *lat != 0 || *lon != 0
}
