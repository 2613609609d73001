package util

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // market zones must resolve in minimal containers
)

var (
	dateLayouts  = []string{"2006-01-02", "20060102", "2006/01/02"}
	clockLayouts = []string{"15:04:05", "150405", "15:04", "1504"}
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseDateClock combines a calendar date and a wall-clock time of day into an
// instant in loc. Both parts must be non-empty and match one of the known layouts.
// A time of day sent as a full RFC3339 or unix timestamp is accepted when it
// falls on date in loc.
func ParseDateClock(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	var day time.Time
	ok := false
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, date, loc); err == nil {
			day, ok = d, true
			break
		}
	}
	if !ok {
		return time.Time{}, false
	}

	// numeric feeds drop the leading zero of morning times (93000 for 09:30:00)
	if len(clock) == 5 && isDigits(clock) {
		clock = "0" + clock
	}
	for _, layout := range clockLayouts {
		if len(layout) != len(clock) {
			continue
		}
		c, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc), true
	}

	if t, ok := ParseTime(clock); ok {
		t = t.In(loc)
		if y, m, d := t.Date(); y == day.Year() && m == day.Month() && d == day.Day() {
			return t.Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

// LoadLocation resolves an IANA zone name, treating "" and "UTC" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
