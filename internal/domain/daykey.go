package domain

import (
	"fmt"
	"time"
)

// DayKeyLayout is the UTC calendar date format of a settlement epoch.
const DayKeyLayout = "2006-01-02"

// DayKey returns the settlement day key (YYYY-MM-DD, UTC) for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// PreviousDayKey returns the day key of the UTC day before t.
func PreviousDayKey(t time.Time) string {
	return DayKey(t.UTC().AddDate(0, 0, -1))
}

// ParseDayKey validates a day key and returns the start of that UTC day.
func ParseDayKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}
