package utils

import (
	"strings"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for stored SMS timestamps.
// Fixed width keeps the string representation lexicographically sortable.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DateLayout is the calendar date layout used by the date index
const DateLayout = "2006-01-02"

// Layouts accepted when reading timestamps back. Older records were written
// with an offset-less ISO form.
var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp. Offset-less values are taken as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// TimestampOrNow parses value and falls back to the current time when it is malformed.
// The boolean reports whether the fallback was used.
func TimestampOrNow(value string) (time.Time, bool) {
	t, err := ParseTimestamp(value)
	if err != nil {
		return UTCNow(), true
	}
	return t, false
}

// UnixScore converts t into a fractional unix-seconds score with microsecond precision
func UnixScore(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// UTCDate returns the UTC calendar date of t
func UTCDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// TodayUTC returns the current UTC calendar date
func TodayUTC() string {
	return UTCDate(UTCNow())
}
