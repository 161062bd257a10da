package database

import "time"

// timeLayout is a fixed-width RFC3339 variant. Timestamps are stored as UTC
// strings in this layout so that string comparison matches chronological
// comparison, which the cursor-based pagination queries depend on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime renders t for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. Zero time on empty input.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
