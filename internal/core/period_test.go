package core

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in    string
		year  int
		month time.Month
		ok    bool
	}{
		{"2024-03", 2024, time.March, true},
		{"Março 2024", 2024, time.March, true},
		{"janeiro 2025", 2025, time.January, true},
		{"2024-3", 0, 0, false},
		{"Smarch 2024", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		p, err := ParsePeriod(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q: unexpected error %v", tc.in, err)
			}
			if p.Year != tc.year || p.Month != tc.month {
				t.Errorf("%q parsed as %v", tc.in, p)
			}
		} else if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("%q: expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestPeriodKeyAndLabel(t *testing.T) {
	p := Period{Year: 2024, Month: time.March}
	if p.Key() != "2024-03" {
		t.Errorf("Key = %q", p.Key())
	}
	if p.Label() != "Março 2024" {
		t.Errorf("Label = %q", p.Label())
	}
	if !p.Contains(NewDate(2024, 3, 31)) {
		t.Errorf("Contains should accept last day of month")
	}
	if p.Contains(NewDate(2024, 4, 1)) {
		t.Errorf("Contains should reject next month")
	}
	if p.Next() != (Period{Year: 2024, Month: time.April}) {
		t.Errorf("Next = %v", p.Next())
	}
	dec := Period{Year: 2024, Month: time.December}
	if dec.Next() != (Period{Year: 2025, Month: time.January}) {
		t.Errorf("Next across year = %v", dec.Next())
	}
}

func TestPaidOnNoteMarker(t *testing.T) {
	d := NewDate(2024, 5, 20)

	encoded := EncodePaidOnNote("nota fiscal 42", d)
	got, ok := ExtractPaidOnNote(encoded)
	if !ok || got.ISO() != "2024-05-20" {
		t.Fatalf("round trip failed: %q -> %v %v", encoded, got, ok)
	}
	if StripPaidOnNote(encoded) != "nota fiscal 42" {
		t.Errorf("Strip = %q", StripPaidOnNote(encoded))
	}

	// Re-encoding replaces the previous marker.
	again := EncodePaidOnNote(encoded, NewDate(2024, 6, 1))
	got, _ = ExtractPaidOnNote(again)
	if got.ISO() != "2024-06-01" {
		t.Errorf("re-encode kept old marker: %q", again)
	}

	if _, ok := ExtractPaidOnNote("plain note"); ok {
		t.Errorf("marker found in plain note")
	}
	if StripPaidOnNote("") != "" {
		t.Errorf("Strip of empty note changed it")
	}
}
