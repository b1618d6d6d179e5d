// Package id formats the human-readable identifiers the engine hands
// out: journal entry numbers and import batch ids. Row ids are UUIDs
// and live elsewhere.
package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatEntryNumber returns an entry number like "JE-00042".
func FormatEntryNumber(seq int64) string {
	return fmt.Sprintf("JE-%05d", seq)
}

// ParseEntryNumber parses "JE-00042" back into its sequence number.
func ParseEntryNumber(number string) (int64, error) {
	rest, ok := strings.CutPrefix(number, "JE-")
	if !ok {
		return 0, fmt.Errorf("invalid entry number format: %q", number)
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence in entry number %q: %w", number, err)
	}
	return seq, nil
}

// FormatBatchID returns an import batch id like "imp-20250103150405",
// derived from the import timestamp.
func FormatBatchID(t time.Time) string {
	return "imp-" + t.UTC().Format("20060102150405")
}
