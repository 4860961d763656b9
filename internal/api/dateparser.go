package api

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var nowMinusPattern = regexp.MustCompile(`(?i)^\s*now\s*-\s*(.+)$`)

// ParseTimestampMs parses a window bound given as epoch milliseconds, as
// "now-<duration>" (e.g. "now-2h", "now-1d") or as a human-readable date,
// relative to now. Returns epoch milliseconds.
// fieldName is used for error messages (e.g., "start", "end").
func ParseTimestampMs(timestampStr, fieldName string, now time.Time) (int64, error) {
	trimmed := strings.TrimSpace(timestampStr)
	if trimmed == "" {
		return 0, NewValidationError("%s timestamp is required", fieldName)
	}

	// Integers are always epoch milliseconds; 0 is a valid instant
	if ms, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if ms < 0 {
			return 0, NewValidationError("%s timestamp must be non-negative", fieldName)
		}
		return ms, nil
	}

	if m := nowMinusPattern.FindStringSubmatch(trimmed); m != nil {
		d, err := parseDuration(strings.TrimSpace(m[1]))
		if err != nil {
			return 0, NewValidationError("%s: invalid duration after 'now-': %v", fieldName, err)
		}
		return now.Add(-d).UnixMilli(), nil
	}
	if strings.EqualFold(trimmed, "now") {
		return now.UnixMilli(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dps.Past,
	}
	parsedDate, err := parser.Parse(cfg, trimmed)
	if err != nil {
		return 0, NewValidationError("%s must be epoch milliseconds or a human-readable date: %v", fieldName, err)
	}
	if parsedDate.IsZero() {
		return 0, NewValidationError("%s could not be parsed as a valid date: %s", fieldName, timestampStr)
	}
	return parsedDate.Time.UnixMilli(), nil
}

// parseDuration accepts Go durations plus a day suffix ("1d", "1d12h").
func parseDuration(s string) (time.Duration, error) {
	var days time.Duration
	if i := strings.IndexByte(s, 'd'); i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, err
		}
		days = time.Duration(n) * 24 * time.Hour
		s = s[i+1:]
		if s == "" {
			return days, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return days + d, nil
}
