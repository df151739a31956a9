// Package ics renders a single appointment as an RFC 5545 calendar document
// suitable for "add to calendar" downloads.
package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"terminbuddy/internal/model"
)

type Event struct {
	ID           string
	BusinessName string
	Timezone     string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	StartsAt     time.Time
	EndsAt       time.Time
	Status       string
	Notes        string
}

// Encode produces the full VCALENDAR document, CRLF-terminated and folded per
// RFC 5545 (the encoder handles escaping and 75-octet line wrapping).
func Encode(ev Event, now time.Time) ([]byte, error) {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.ID+"@terminbuddy")
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.StartsAt.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndsAt.UTC())
	ve.Props.SetText(ical.PropSummary, "Appointment: "+ev.ClientName)
	ve.Props.SetText(ical.PropDescription, description(ev))
	if ev.Status == model.StatusCancelled {
		ve.Props.SetText(ical.PropStatus, "CANCELLED")
	} else {
		ve.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//TerminBuddy//EN")
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")
	cal.Props.SetText("X-WR-TIMEZONE", ev.Timezone)
	cal.Children = append(cal.Children, ve)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename derives the attachment name from the appointment date and a short
// id prefix, e.g. appointment-2026-03-02-1a2b3c4d.ics.
func Filename(ev Event) string {
	prefix := ev.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("appointment-%s-%s.ics", ev.StartsAt.UTC().Format("2006-01-02"), prefix)
}

func description(ev Event) string {
	var parts []string
	if ev.Notes != "" {
		parts = append(parts, "Notes: "+ev.Notes)
	}
	if ev.ClientEmail != "" {
		parts = append(parts, "Email: "+ev.ClientEmail)
	}
	if ev.ClientPhone != "" {
		parts = append(parts, "Phone: "+ev.ClientPhone)
	}
	parts = append(parts, "Business: "+ev.BusinessName)
	parts = append(parts, "Time zone: "+ev.Timezone)
	return strings.Join(parts, "\n")
}
