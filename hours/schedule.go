// hours/schedule.go
package hours

import (
	"bytes"
	"encoding/json"
)

// Status says what a DayHours value holds. Only StatusOpen carries times;
// the sentinels are passed through when a source gives no numbers.
type Status int

const (
	StatusClosed Status = iota
	StatusOpen
	StatusUnknown
	StatusCallForHours
	StatusVariable
	StatusTwentyFourHours
)

var statusNames = map[Status]string{
	StatusClosed:          "Closed",
	StatusOpen:            "Open",
	StatusUnknown:         "Unknown",
	StatusCallForHours:    "CallForHours",
	StatusVariable:        "Variable",
	StatusTwentyFourHours: "TwentyFourHours",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

// DayHours is the trading state of one day.
type DayHours struct {
	Status Status
	Open   Clock
	Close  Clock
}

func Closed() DayHours { return DayHours{Status: StatusClosed} }

func OpenBetween(open, close Clock) DayHours {
	return DayHours{Status: StatusOpen, Open: open, Close: close}
}

func (d DayHours) IsOpen() bool { return d.Status == StatusOpen }

func (d DayHours) String() string {
	switch d.Status {
	case StatusOpen:
		return d.Open.String() + " - " + d.Close.String()
	case StatusTwentyFourHours:
		return "24 Hours"
	case StatusCallForHours:
		return "Call for hours"
	default:
		return d.Status.String()
	}
}

type dayHoursJSON struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Status string `json:"status,omitempty"`
}

func (d DayHours) MarshalJSON() ([]byte, error) {
	if d.Status == StatusOpen {
		return json.Marshal(dayHoursJSON{Open: d.Open.String(), Close: d.Close.String()})
	}
	return json.Marshal(dayHoursJSON{Status: d.Status.String()})
}

// WeeklySchedule maps each canonical day to its hours.
type WeeklySchedule map[Day]DayHours

// NewWeeklySchedule returns the default schedule: all seven days Closed.
func NewWeeklySchedule() WeeklySchedule {
	w := make(WeeklySchedule, len(Week)+1)
	for _, d := range Week {
		w[d] = Closed()
	}
	return w
}

var allDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday, PublicHoliday}

// Days returns the schedule's keys in canonical order.
func (w WeeklySchedule) Days() []Day {
	out := make([]Day, 0, len(w))
	for _, d := range allDays {
		if _, ok := w[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// MarshalJSON writes days in canonical order rather than map order.
func (w WeeklySchedule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range w.Days() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(d.String())
		val, err := json.Marshal(w[d])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON is the serialized form used in exports. It never fails for
// schedules built by this package.
func (w WeeklySchedule) JSON() string {
	b, err := w.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}
