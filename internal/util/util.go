package util

import (
	"fmt"
	"time"
)

// timestamp layouts accepted from the backend, tried in order. Layouts
// without an offset parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without an offset.
// Fractional seconds are truncated to millisecond precision.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Truncate(time.Millisecond), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatElapsed renders the time since createdAt for display, for example
// "45s", "2m" or "2h 1m". Unparseable or future timestamps render as "0s".
func FormatElapsed(createdAt string, now time.Time) string {
	t, err := ParseTimestamp(createdAt)
	if err != nil {
		return "0s"
	}

	return FormatDuration(now.Sub(t))
}

// FormatDuration renders d floored to whole seconds.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}

	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}
