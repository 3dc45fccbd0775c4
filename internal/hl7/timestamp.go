package hl7

import (
	"fmt"
	"strings"
	"time"
)

const (
	// tsLayout is the full HL7 TS precision used when stamping timestamps.
	tsLayout = "20060102150405"

	// dateLayout is the date-only form used for birth dates and similar DT
	// fields.
	dateLayout = "20060102"
)

// FormatTimestamp renders t as an HL7 TS value (YYYYMMDDHHMMSS, UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// ParseTimestamp parses an HL7 TS value, accepting full timestamp,
// minute-precision, and date-only forms. Trailing fractional seconds and
// time zone offsets are ignored.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse(tsLayout, s[:14])
	case len(s) >= 12:
		return time.Parse("200601021504", s[:12])
	case len(s) >= 8:
		return time.Parse(dateLayout, s[:8])
	default:
		return time.Time{}, fmt.Errorf("hl7: unrecognized timestamp %q", s)
	}
}
