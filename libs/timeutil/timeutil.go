package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// layouts accepted by ParseISO, tried in order. Layouts without a zone are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseISO parses an ISO-8601 timestamp. The boolean is false when the value is blank or unparseable.
func ParseISO(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// MustParseISO is ParseISO for fixed literals, mainly in tests and seeds.
func MustParseISO(value string) time.Time {
	t, ok := ParseISO(value)
	if !ok {
		panic(fmt.Sprintf("timeutil: invalid ISO timestamp %q", value))
	}
	return t
}

// NormaliseISO formats t as a UTC ISO-8601 string with second precision, e.g. 2025-10-27T20:00:00Z.
// Sub-second precision is kept only when present.
func NormaliseISO(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() != 0 {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(time.RFC3339)
}

// NormaliseISOString re-formats value through NormaliseISO, returning it untouched when unparseable.
func NormaliseISOString(value string) string {
	t, ok := ParseISO(value)
	if !ok {
		return value
	}
	return NormaliseISO(t)
}

// SetUTCTime returns the same UTC calendar day as t at hour:00:00.000.
func SetUTCTime(t time.Time, hour int) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
}

// IncrementUTCDays moves t by n calendar days in UTC.
func IncrementUTCDays(t time.Time, n int) time.Time {
	return t.UTC().AddDate(0, 0, n)
}

// Between returns arr-dep. ok is false when either value is unparseable.
func Between(depISO, arrISO string) (d time.Duration, ok bool) {
	dep, okDep := ParseISO(depISO)
	arr, okArr := ParseISO(arrISO)
	if !okDep || !okArr {
		return 0, false
	}
	return arr.Sub(dep), true
}

// CompareISO orders two timestamps chronologically. Unparseable values sort after
// parseable ones and fall back to plain string comparison among themselves.
func CompareISO(a, b string) int {
	ta, okA := ParseISO(a)
	tb, okB := ParseISO(b)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// After reports whether a is strictly later than b.
func After(a, b string) bool {
	return CompareISO(a, b) > 0
}

// FormatUTCDateTime renders an ISO timestamp as "dd-MM @ HH:mm" in UTC.
func FormatUTCDateTime(value string) string {
	t, ok := ParseISO(value)
	if !ok {
		return value
	}
	return t.Format("02-01 @ 15:04")
}

// FormatDuration renders whole hours and minutes, e.g. "5h 30m", "16h", "45m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMinutes := int64(d / time.Minute)
	hours := totalMinutes / 60
	minutes := totalMinutes % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// FormatDurationMs is FormatDuration for millisecond counts.
func FormatDurationMs(ms int64) string {
	return FormatDuration(time.Duration(ms) * time.Millisecond)
}
