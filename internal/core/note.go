package core

import (
	"regexp"
	"strings"
)

// Older expense schemas have no paid_on column; the paid date was carried
// inside the free-text note as a "pago_em:YYYY-MM-DD" marker. The storage
// layer probes the schema once and uses these helpers only on the legacy
// branch.

var paidOnMarker = regexp.MustCompile(`\s*pago_em[:=]\s*(\d{4}-\d{2}-\d{2})\s*`)

// EncodePaidOnNote appends the marker to a note, replacing any existing one.
func EncodePaidOnNote(note string, paidOn Date) string {
	base := StripPaidOnNote(note)
	if base == "" {
		return "pago_em:" + paidOn.ISO()
	}
	return base + " pago_em:" + paidOn.ISO()
}

// ExtractPaidOnNote returns the marker date when present.
func ExtractPaidOnNote(note string) (Date, bool) {
	m := paidOnMarker.FindStringSubmatch(note)
	if m == nil {
		return Date{}, false
	}
	d, err := ParseDate(m[1])
	if err != nil {
		return Date{}, false
	}
	return d, true
}

// StripPaidOnNote removes the marker, returning the display note.
func StripPaidOnNote(note string) string {
	return strings.TrimSpace(paidOnMarker.ReplaceAllString(note, " "))
}
