// hours/normalize.go

// Package hours normalizes heterogeneous trading-hours data into a
// WeeklySchedule. Every input shape is tokenized into (day-set, status)
// statements which are then applied in source order, last write wins.
package hours

import (
	"fmt"
	"log/slog"
)

// Normalizer turns Raw hours into a WeeklySchedule. It never fails: input it
// cannot read yields the all-Closed default and a log line.
type Normalizer struct {
	log *slog.Logger
}

func NewNormalizer(log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{log: log.With("component", "hours")}
}

// Normalize uses a Normalizer that logs to slog.Default.
func Normalize(raw Raw) WeeklySchedule {
	return NewNormalizer(nil).Normalize(raw)
}

func (n *Normalizer) Normalize(raw Raw) WeeklySchedule {
	sched := NewWeeklySchedule()
	if raw == nil {
		n.log.Warn("no trading hours supplied, defaulting to closed")
		return sched
	}

	toks, skipped := raw.tokens()
	for _, s := range skipped {
		n.log.Debug("skipped trading hours fragment", "shape", raw.shape(), "fragment", s)
	}

	applied := 0
	for _, t := range toks {
		dh, err := t.resolve()
		if err != nil {
			n.log.Debug("skipped trading hours statement", "shape", raw.shape(), "err", err)
			continue
		}
		for _, d := range t.days {
			sched[d] = dh
		}
		applied++
	}

	if applied == 0 {
		n.log.Warn("unparseable trading hours, defaulting to closed",
			"shape", raw.shape(),
			"input", truncate(fmt.Sprint(raw), 200),
		)
		return NewWeeklySchedule()
	}
	return sched
}

// resolve parses the token's raw times into DayHours.
func (t token) resolve() (DayHours, error) {
	if len(t.days) == 0 {
		return DayHours{}, &ParseError{Input: t.open + "-" + t.close, Reason: "no days"}
	}
	if t.status != StatusOpen {
		return DayHours{Status: t.status}, nil
	}

	parse := parseLoose
	if t.strict {
		parse = parseStrict
	}
	open, err := parse(t.open)
	if err != nil {
		return DayHours{}, err
	}
	close, err := parse(t.close)
	if err != nil {
		return DayHours{}, err
	}

	// A guessed close that lands at or before the open is the evening one.
	if !close.explicit && close.Minutes() <= open.Minutes() && close.Hour24() < 12 {
		close.Clock = NewClock(close.Hour24()+12, close.Minute)
	}

	// Midnight to midnight is all day; any other zero-length range is closed.
	if open.Minutes() == close.Minutes() {
		if open.Minutes() == 0 {
			return DayHours{Status: StatusTwentyFourHours}, nil
		}
		return Closed(), nil
	}
	if open.Minutes() == 0 && close.Hour24() == 23 && close.Minute == 59 {
		return DayHours{Status: StatusTwentyFourHours}, nil
	}
	return OpenBetween(open.Clock, close.Clock), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
