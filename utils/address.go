// utils/address.go
package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var stateCodes = map[string]string{
	"NSW": "NSW", "NEW SOUTH WALES": "NSW",
	"VIC": "VIC", "VICTORIA": "VIC",
	"QLD": "QLD", "QUEENSLAND": "QLD",
	"SA": "SA", "SOUTH AUSTRALIA": "SA",
	"WA": "WA", "WESTERN AUSTRALIA": "WA",
	"TAS": "TAS", "TASMANIA": "TAS",
	"NT": "NT", "NORTHERN TERRITORY": "NT",
	"ACT": "ACT", "AUSTRALIAN CAPITAL TERRITORY": "ACT",
}

// NormalizeState converts an Australian state or territory name or
// abbreviation ("Victoria", "vic.") to its code ("VIC").
// Unknown values return "".
func NormalizeState(s string) string {
	key := strings.ToUpper(strings.Trim(strings.TrimSpace(s), "."))
	key = strings.Join(strings.Fields(key), " ")
	return stateCodes[key]
}

// NormalizePostcode returns a 4-digit postcode, restoring the leading zero
// NT postcodes lose in spreadsheets ("800" -> "0800"). Anything else is "".
func NormalizePostcode(s string) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	switch len(s) {
	case 3:
		return "0" + s
	case 4:
		return s
	}
	return ""
}

var postcodeRanges = []struct {
	lo, hi int
	state  string
}{
	{200, 299, "ACT"},
	{800, 999, "NT"},
	{1000, 2599, "NSW"},
	{2600, 2618, "ACT"},
	{2619, 2899, "NSW"},
	{2900, 2920, "ACT"},
	{2921, 2999, "NSW"},
	{3000, 3999, "VIC"},
	{4000, 4999, "QLD"},
	{5000, 5999, "SA"},
	{6000, 6999, "WA"},
	{7000, 7999, "TAS"},
	{8000, 8999, "VIC"},
	{9000, 9999, "QLD"},
}

// StateForPostcode infers the state from a postcode's numeric range.
func StateForPostcode(postcode string) string {
	n, err := strconv.Atoi(NormalizePostcode(postcode))
	if err != nil {
		return ""
	}
	for _, r := range postcodeRanges {
		if n >= r.lo && n <= r.hi {
			return r.state
		}
	}
	return ""
}

// AddressParts is a one-line address split into its components.
type AddressParts struct {
	Street   string
	Suburb   string
	State    string
	Postcode string
}

const stateAlternatives = `NSW|VIC|QLD|SA|WA|TAS|NT|ACT|New\s+South\s+Wales|Victoria|Queensland|South\s+Australia|Western\s+Australia|Tasmania|Northern\s+Territory|Australian\s+Capital\s+Territory`

var (
	countryTail  = regexp.MustCompile(`(?i)[\s,]*\bAustralia\s*$`)
	stateTail    = regexp.MustCompile(`(?i)(?:^|[\s,]+)(` + stateAlternatives + `)\.?[\s,]*(\d{3,4})?\s*$`)
	postcodeTail = regexp.MustCompile(`(?:^|[\s,]+)(\d{4})\s*$`)
	streetTypes  = regexp.MustCompile(`(?i)\b(?:st|street|rd|road|ave|avenue|dr|drive|hwy|highway|pde|parade|blvd|boulevard|cres|crescent|ct|court|pl|place|lane|ln|tce|terrace|way|cct|circuit|sq|square|mall|esp|esplanade|cl|close|gr|grove|pkwy|parkway|centre|center|plaza|arcade|shopping\s+centre)\b\.?`)
)

// SplitAddress extracts street, suburb, state and postcode from a free-text
// Australian address such as "Shop 3, 12 High St, Kew VIC 3101". Parts it
// cannot find are left empty; the state falls back to the postcode range.
func SplitAddress(addr string) AddressParts {
	s := strings.Join(strings.Fields(addr), " ")
	s = countryTail.ReplaceAllString(s, "")
	if s == "" {
		return AddressParts{}
	}

	var p AddressParts
	head := s
	if m := stateTail.FindStringSubmatchIndex(s); m != nil {
		p.State = NormalizeState(s[m[2]:m[3]])
		if m[4] >= 0 {
			p.Postcode = NormalizePostcode(s[m[4]:m[5]])
		}
		head = s[:m[0]]
	} else if m := postcodeTail.FindStringSubmatchIndex(s); m != nil {
		p.Postcode = s[m[2]:m[3]]
		head = s[:m[0]]
	}
	if p.State == "" && p.Postcode != "" {
		p.State = StateForPostcode(p.Postcode)
	}

	head = strings.TrimRight(strings.TrimSpace(head), ",")
	if head == "" {
		return p
	}
	if p.State == "" && p.Postcode == "" {
		p.Street = head
		return p
	}

	if i := strings.LastIndex(head, ","); i >= 0 {
		p.Street = strings.TrimSpace(head[:i])
		p.Suburb = strings.TrimSpace(head[i+1:])
		return p
	}

	// No comma: the suburb is whatever follows the last street type word.
	locs := streetTypes.FindAllStringIndex(head, -1)
	if len(locs) == 0 {
		p.Suburb = head
		return p
	}
	end := locs[len(locs)-1][1]
	p.Street = strings.TrimSpace(head[:end])
	p.Suburb = strings.TrimSpace(head[end:])
	return p
}
