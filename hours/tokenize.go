// hours/tokenize.go
package hours

import (
	"regexp"
	"strings"
)

// token is one (day-set, status) statement in source order. For StatusOpen
// the open/close fields hold the raw time text.
type token struct {
	days   []Day
	status Status
	open   string
	close  string
	strict bool // structured 24-hour input, no am/pm guessing
}

const (
	dayWord  = `(?:monday|tuesday|tues|tue|wednesday|weds|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun|mon|ph)`
	dayExpr  = `\b` + dayWord + `s?\b\.?`
	timeExpr = `(?:noon|midday|midnight|\d{1,2}(?:[:.]\d{2}){0,2}\s*(?:(?:am|pm|a|p)\b)?)`
	timeSep  = `\s*(?:-|\bto\b|\buntil\b|\btill\b|\btil\b)\s*`
	daySep   = `\s*(?:-|\bto\b|\bthrough\b|\bthru\b|\btill\b|\buntil\b)\s*`
)

var lexer = regexp.MustCompile(
	`(?P<h24>\bopen\s*24\s*h(?:ou)?rs?\b|\b24\s*/\s*7\b|\b24\s*h(?:ou)?rs?\b|\btwenty[\s-]*four\s*hours\b)` +
		`|(?P<unknown>\btb[acd]\b|\bunknown\b|\bn/a\b|\bnot\s+available\b)` +
		`|(?P<call>\bcall\b(?:\s+(?:us|store|pharmacy))?(?:\s+(?:for|to\s+confirm))?(?:\s+(?:hours|times|details))?|\bby\s+appointment\b)` +
		`|(?P<variable>\bvar(?:ies|iable|y|ying)\b)` +
		`|(?P<closed>\bclosed\b)` +
		`|(?P<times>(?P<t1>` + timeExpr + `)` + timeSep + `(?P<t2>` + timeExpr + `))` +
		`|(?P<drange>(?P<d1>` + dayExpr + `)` + daySep + `(?P<d2>` + dayExpr + `))` +
		`|(?P<group>\bevery\s*day\b|\beveryday\b|\bdaily\b|\b7\s*days(?:\s*a\s*week)?\b|\bseven\s*days\b|\ball\s*week\b|\bweekdays?\b|\bweekends?\b|\bpublic\s*holidays?\b|\bholidays?\b)` +
		`|(?P<day>` + dayExpr + `)`,
)

var lexGroup = func() map[string]int {
	m := make(map[string]int)
	for i, n := range lexer.SubexpNames() {
		if n != "" {
			m[n] = i
		}
	}
	return m
}()

var statusGroups = []struct {
	name   string
	status Status
}{
	{"h24", StatusTwentyFourHours},
	{"unknown", StatusUnknown},
	{"call", StatusCallForHours},
	{"variable", StatusVariable},
	{"closed", StatusClosed},
}

type lexKind int

const (
	lexDays lexKind = iota
	lexTimes
	lexStatus
)

type lexeme struct {
	kind        lexKind
	days        []Day
	status      Status
	open, close string
}

var (
	segmentSep   = regexp.MustCompile(`[,;\n|]+`)
	lineSep      = regexp.MustCompile(`[;\n|]+`)
	listSep      = regexp.MustCompile(`,+`)
	textReplacer = strings.NewReplacer(
		"–", "-", "—", "-", "‑", "-", "\u00a0", " ",
		"a.m.", "am", "p.m.", "pm",
		"12 noon", "noon", "12noon", "noon",
		"12 midnight", "midnight",
		"&", ",", " and ", ", ",
	)
)

func normalizeText(s string) string {
	return textReplacer.Replace(strings.ToLower(s))
}

func submatch(s string, loc []int, group string) string {
	i := lexGroup[group]
	if loc[2*i] < 0 {
		return ""
	}
	return s[loc[2*i]:loc[2*i+1]]
}

var wordish = regexp.MustCompile(`[a-z0-9]`)

// lex splits one normalized segment into day, time-range and status lexemes.
// noise reports unmatched words or numbers between them.
func lex(seg string) (out []lexeme, noise bool) {
	prev := 0
	for _, loc := range lexer.FindAllStringSubmatchIndex(seg, -1) {
		if wordish.MatchString(seg[prev:loc[0]]) {
			noise = true
		}
		prev = loc[1]
		if t1 := submatch(seg, loc, "t1"); t1 != "" {
			out = append(out, lexeme{kind: lexTimes, open: t1, close: submatch(seg, loc, "t2")})
			continue
		}
		if d1 := submatch(seg, loc, "d1"); d1 != "" {
			from, ok1 := LookupDay(d1)
			to, ok2 := LookupDay(submatch(seg, loc, "d2"))
			if ok1 && ok2 {
				out = append(out, lexeme{kind: lexDays, days: ExpandRange(from, to)})
			}
			continue
		}
		if g := submatch(seg, loc, "group"); g != "" {
			if days, ok := ResolveDays(g); ok {
				out = append(out, lexeme{kind: lexDays, days: days})
			}
			continue
		}
		if d := submatch(seg, loc, "day"); d != "" {
			if day, ok := LookupDay(d); ok {
				out = append(out, lexeme{kind: lexDays, days: []Day{day}})
			}
			continue
		}
		for _, sg := range statusGroups {
			if submatch(seg, loc, sg.name) != "" {
				out = append(out, lexeme{kind: lexStatus, status: sg.status})
				break
			}
		}
	}
	if wordish.MatchString(seg[prev:]) {
		noise = true
	}
	return out, noise
}

// tokenizeText walks free text line by line (newline, ';' or '|') and each
// line comma segment by comma segment. Days accumulate until a time range or
// status claims them.
//
// A segment made only of days carries into the next comma segment of the same
// line ("Mon, Wed, Fri 9-5", "Mon-Fri, 9-5"), but not into one that opens with
// hours or a status for its own days. A time range written before its days
// ("9am-5pm Mon-Fri") or a status before its days ("Closed Sunday") applies to
// the days that follow it in the segment. A time range with no days at all
// directly after another time range extends the previous close (split
// shifts). Anything else left without a partner is skipped.
func tokenizeText(s string) (tokens []token, skipped []string) {
	for _, line := range lineSep.Split(normalizeText(s), -1) {
		var (
			carry    []Day
			lastTime = -1
		)
		for _, seg := range listSep.Split(line, -1) {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			lexemes, noise := lex(seg)
			if len(lexemes) == 0 {
				skipped = append(skipped, seg)
				continue
			}

			var pending []Day
			if len(carry) > 0 {
				if lexemes[0].kind == lexDays || !hasDays(lexemes) {
					pending = carry
				} else {
					skipped = append(skipped, "days without hours")
				}
				carry = nil
			}

			// A status or time range written before its days waits here.
			deferred := -1
			var early *lexeme
			attached := -1 // token that took the early range
			for i, lx := range lexemes {
				switch lx.kind {
				case lexDays:
					if attached >= 0 {
						tokens[attached].days = append(tokens[attached].days, lx.days...)
						continue
					}
					if early != nil {
						tokens = append(tokens, token{days: append([]Day(nil), lx.days...), status: StatusOpen, open: early.open, close: early.close})
						attached = len(tokens) - 1
						lastTime = attached
						early = nil
						continue
					}
					pending = append(pending, lx.days...)
					lastTime = -1
				case lexTimes:
					attached = -1
					switch {
					case len(pending) > 0:
						tokens = append(tokens, token{days: pending, status: StatusOpen, open: lx.open, close: lx.close})
						pending = nil
						lastTime = len(tokens) - 1
					case hasDays(lexemes[i+1:]):
						if early != nil {
							skipped = append(skipped, early.open+"-"+early.close)
						}
						lx := lx
						early = &lx
					case lastTime >= 0:
						tokens[lastTime].close = lx.close
					default:
						skipped = append(skipped, seg)
					}
				case lexStatus:
					attached = -1
					lastTime = -1
					if len(pending) > 0 {
						tokens = append(tokens, token{days: pending, status: lx.status})
						pending = nil
					} else {
						deferred = int(lx.status)
					}
				}
			}
			if deferred >= 0 && len(pending) > 0 {
				tokens = append(tokens, token{days: pending, status: Status(deferred)})
				pending = nil
			}
			if len(pending) == 0 {
				continue
			}
			if noise || !onlyDays(lexemes) {
				skipped = append(skipped, seg)
				continue
			}
			carry = pending
		}
		if len(carry) > 0 {
			skipped = append(skipped, "days without hours")
		}
	}
	return tokens, skipped
}

func hasDays(lexemes []lexeme) bool {
	for _, lx := range lexemes {
		if lx.kind == lexDays {
			return true
		}
	}
	return false
}

func onlyDays(lexemes []lexeme) bool {
	for _, lx := range lexemes {
		if lx.kind != lexDays {
			return false
		}
	}
	return true
}

// tokenizeCell reads one table hours cell for a known day set.
func tokenizeCell(days []Day, cell string) (token, bool) {
	var tok token
	found := false
	for _, seg := range segmentSep.Split(normalizeText(cell), -1) {
		lexemes, _ := lex(seg)
		for _, lx := range lexemes {
			switch lx.kind {
			case lexTimes:
				if !found || tok.status != StatusOpen {
					tok = token{days: days, status: StatusOpen, open: lx.open, close: lx.close}
				} else {
					tok.close = lx.close
				}
				found = true
			case lexStatus:
				if !found {
					tok = token{days: days, status: lx.status}
					found = true
				}
			}
		}
	}
	return tok, found
}
