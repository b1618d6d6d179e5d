package store

import "time"

// DateFormat is how calendar dates (entry, posting, statement dates)
// are stored. Lexicographic order matches chronological order.
const DateFormat = "2006-01-02"

// TimeFormat is how timestamps are stored.
const TimeFormat = time.RFC3339

// FormatDate renders t as a stored date.
func FormatDate(t time.Time) string { return t.Format(DateFormat) }

// FormatTime renders t as a stored timestamp.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeFormat) }

// ParseDate parses a stored date.
func ParseDate(s string) (time.Time, error) { return time.Parse(DateFormat, s) }

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) { return time.Parse(TimeFormat, s) }
