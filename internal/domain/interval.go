package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is the scheduler's day key as used on the wire.
type Weekday string

const (
	WeekdaySunday    Weekday = "WEEKDAY_SU"
	WeekdayMonday    Weekday = "WEEKDAY_MO"
	WeekdayTuesday   Weekday = "WEEKDAY_TU"
	WeekdayWednesday Weekday = "WEEKDAY_WE"
	WeekdayThursday  Weekday = "WEEKDAY_TH"
	WeekdayFriday    Weekday = "WEEKDAY_FR"
	WeekdaySaturday  Weekday = "WEEKDAY_SA"
)

// Weekdays lists all days in device order (Sunday first).
var Weekdays = []Weekday{
	WeekdaySunday,
	WeekdayMonday,
	WeekdayTuesday,
	WeekdayWednesday,
	WeekdayThursday,
	WeekdayFriday,
	WeekdaySaturday,
}

// ParseWeekday validates a wire day key.
func ParseWeekday(s string) (Weekday, bool) {
	for _, d := range Weekdays {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// WeekdayOf maps a time.Weekday onto the device key.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekdays[int(d)%len(Weekdays)]
}

// EmptyTime is the midnight value used for cleared slots and timers.
const EmptyTime = "00:00:00"

// Interval is one slot of a day's schedule.
type Interval struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Identifier int    `json:"identifier"`
	Index      int    `json:"index"`
	Active     bool   `json:"active"`
	Disabled   bool   `json:"disabled"`
}

// IsEmpty reports whether the slot holds no schedule.
func (i Interval) IsEmpty() bool {
	return i.Start == EmptyTime && i.End == EmptyTime && i.Identifier == 0 && !i.Active
}

// SetEmpty clears the slot while keeping its index.
func (i *Interval) SetEmpty() {
	i.Start = EmptyTime
	i.End = EmptyTime
	i.Identifier = 0
	i.Active = false
}

// Duration returns end minus start, never negative.
func (i Interval) Duration() time.Duration {
	start, err1 := ParseClock(i.Start)
	end, err2 := ParseClock(i.End)
	if err1 != nil || err2 != nil || end < start {
		return 0
	}
	return end - start
}

// Day is the schedule of one weekday as served by GET /scheduler/{day}.
type Day struct {
	Intervals []Interval `json:"intervals"`
	Disabled  bool       `json:"disabled"`
}

// ParseClock parses HH:MM:SS into the offset since midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse clock %q: want HH:MM:SS", s)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse clock %q: invalid field %q", s, p)
		}
		vals[i] = n
	}
	return time.Duration(vals[0])*time.Hour +
		time.Duration(vals[1])*time.Minute +
		time.Duration(vals[2])*time.Second, nil
}

// FormatClock renders an offset since midnight as HH:MM:SS.
func FormatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
