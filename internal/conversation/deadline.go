package conversation

import (
	"strings"
	"time"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const dateLayout = "2006-01-02"

// parseTimestamp reads the timestamp shapes the document server emits.
// Values without an offset are read in loc.
func parseTimestamp(raw string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	for _, layout := range zonedLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, false, true
		}
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsed, false, true
		}
	}
	if parsed, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return parsed, true, true
	}
	return time.Time{}, false, false
}

// IsExpired reports whether a deadline lies strictly before now. Empty or
// unreadable deadlines are never expired. A bare date covers that whole day
// in now's location.
func IsExpired(deadline string, now time.Time) bool {
	raw := strings.TrimSpace(deadline)
	if raw == "" {
		return false
	}
	t, dateOnly, ok := parseTimestamp(raw, now.Location())
	if !ok {
		return false
	}
	if dateOnly {
		t = t.AddDate(0, 0, 1)
	}
	return t.Before(now)
}

// FormatTimestamp renders a server timestamp as "2006-01-02 15:04" in loc.
// Unreadable input is returned unchanged.
func FormatTimestamp(raw string, loc *time.Location) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, _, ok := parseTimestamp(raw, loc)
	if !ok {
		return raw
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
