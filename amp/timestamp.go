package amp

import "time"

// ModifiedTimeFormat is the 14 digit layout of FILE block timestamps.
const ModifiedTimeFormat = "20060102150405"

// FormatTimestamp renders t in its own location. FLAMP stations stamp files
// in local time, so callers decide the zone by choosing t's location.
func FormatTimestamp(t time.Time) string {
	return t.Format(ModifiedTimeFormat)
}

// ParseTimestamp parses a FILE block timestamp in loc. A nil loc means UTC.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(ModifiedTimeFormat, s, loc)
}
