package tz

import (
	"errors"
	"testing"
	"time"
)

func TestToInstant_Vienna(t *testing.T) {
	got, err := ToInstant("2026-02-10T14:30", "Europe/Vienna")
	if err != nil {
		t.Fatalf("ToInstant: %v", err)
	}
	// Vienna is UTC+1 in February.
	want := time.Date(2026, 2, 10, 13, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.UTC())
	}
}

func TestToInstant_ViennaSummer(t *testing.T) {
	got, err := ToInstant("2026-07-01T14:30", "Europe/Vienna")
	if err != nil {
		t.Fatalf("ToInstant: %v", err)
	}
	// Vienna is UTC+2 in July.
	want := time.Date(2026, 7, 1, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.UTC())
	}
}

func TestToInstant_RejectsDSTGap(t *testing.T) {
	// Austria springs forward 2026-03-29 02:00 -> 03:00; 02:30 never happens.
	_, err := ToInstant("2026-03-29T02:30", "Europe/Vienna")
	if !errors.Is(err, ErrNonexistentTime) {
		t.Fatalf("expected ErrNonexistentTime, got %v", err)
	}
}

func TestToInstant_InvalidInputs(t *testing.T) {
	if _, err := ToInstant("2026-02-10T14:30", "Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if _, err := ToInstant("10.02.2026 14:30", "Europe/Vienna"); err == nil {
		t.Fatal("expected error for malformed datetime")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		value string
		zone  string
	}{
		{"2026-02-10T09:00", "Europe/Vienna"},
		{"2026-07-15T23:45", "Europe/Vienna"},
		{"2026-03-29T03:30", "Europe/Vienna"}, // first hour after spring forward
		{"2026-10-25T02:30", "Europe/Vienna"}, // ambiguous fall-back hour, still renders the same
		{"2026-03-29T01:59", "Europe/Vienna"}, // last minute before the gap
		{"2026-06-01T12:00", "America/New_York"},
		{"2026-01-01T00:00", "UTC"},
	}
	for _, tc := range cases {
		instant, err := ToInstant(tc.value, tc.zone)
		if err != nil {
			t.Fatalf("ToInstant(%q, %q): %v", tc.value, tc.zone, err)
		}
		rendered, err := Render(instant, tc.zone)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if rendered != tc.value {
			t.Fatalf("round trip %q in %s: got %q", tc.value, tc.zone, rendered)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	instant := time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)
	if got := FormatDay(instant, "Europe/Vienna"); got != "Monday, 02 March 2026" {
		t.Fatalf("FormatDay = %q", got)
	}
	if got := FormatClock(instant, "Europe/Vienna"); got != "14:30" {
		t.Fatalf("FormatClock = %q", got)
	}
	// Unknown zones degrade to UTC instead of failing a display path.
	if got := FormatClock(instant, "Nope/Nope"); got != "13:30" {
		t.Fatalf("FormatClock fallback = %q", got)
	}
}
