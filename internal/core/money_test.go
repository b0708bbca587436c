package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"0", 0, true}, // zero is valid for discount/advance
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestDivideCents(t *testing.T) {
	cases := []struct {
		total int64
		count int
		want  int64
	}{
		{100000, 3, 33333},
		{20000, 3, 6667}, // half-up
		{10000, 4, 2500},
		{1, 2, 1},
		{0, 5, 0},
	}
	for _, tc := range cases {
		if got := DivideCents(tc.total, tc.count); got != tc.want {
			t.Errorf("DivideCents(%d, %d) = %d, want %d", tc.total, tc.count, got, tc.want)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{123456, "R$ 1234,56"},
		{100, "R$ 1,00"},
		{5, "R$ 0,05"},
		{-250, "-R$ 2,50"},
	}
	for _, tc := range cases {
		if got := FormatBRL(tc.cents); got != tc.want {
			t.Errorf("FormatBRL(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
