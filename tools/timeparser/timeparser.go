package timeparser

import (
	"fmt"
	"time"
)

// ParseMeasureDatetime parses an ISO-8601 measure datetime. Inputs without
// an offset are taken as UTC.
func ParseMeasureDatetime(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// FormatMeasureDatetime renders an instant in UTC ISO-8601, as used for event timestamps
func FormatMeasureDatetime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
