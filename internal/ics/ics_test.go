package ics

import (
	"strings"
	"testing"
	"time"

	"terminbuddy/internal/model"
)

func testEvent() Event {
	return Event{
		ID:           "1a2b3c4d-0000-4000-8000-123456789abc",
		BusinessName: "Barber, Central; Wien",
		Timezone:     "Europe/Vienna",
		ClientName:   "Anna Muster",
		ClientEmail:  "anna@example.com",
		StartsAt:     time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC),
		EndsAt:       time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		Status:       model.StatusBooked,
		Notes:        "cut + beard\nsecond line",
	}
}

func TestEncode(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out, err := Encode(testEvent(), now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:1a2b3c4d-0000-4000-8000-123456789abc@terminbuddy",
		"DTSTART:20260302T133000Z",
		"DTEND:20260302T140000Z",
		"STATUS:CONFIRMED",
		"X-WR-TIMEZONE:Europe/Vienna",
		"END:VCALENDAR",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	// Text fields must be escaped per RFC 5545.
	if !strings.Contains(doc, `Barber\, Central\; Wien`) {
		t.Errorf("business name not escaped:\n%s", doc)
	}
	if !strings.Contains(doc, `cut + beard\nsecond line`) {
		t.Errorf("newline in notes not escaped:\n%s", doc)
	}

	// CRLF endings and 75-octet folding.
	if !strings.HasSuffix(doc, "\r\n") {
		t.Error("document must end with CRLF")
	}
	for _, line := range strings.Split(strings.TrimSuffix(doc, "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Errorf("line longer than 75 octets: %q", line)
		}
	}
}

func TestEncode_CancelledStatus(t *testing.T) {
	ev := testEvent()
	ev.Status = model.StatusCancelled
	out, err := Encode(ev, time.Now())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(out), "STATUS:CANCELLED") {
		t.Fatal("expected STATUS:CANCELLED")
	}
}

func TestFilename(t *testing.T) {
	got := Filename(testEvent())
	if got != "appointment-2026-03-02-1a2b3c4d.ics" {
		t.Fatalf("Filename = %q", got)
	}
}
