package email

import (
	"fmt"
	"html"
	"strings"
	"time"

	"terminbuddy/internal/tz"
)

// AppointmentInfo carries everything a client-facing appointment email needs.
type AppointmentInfo struct {
	BusinessName string
	Timezone     string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	StartsAt     time.Time
	EndsAt       time.Time
	Notes        string
}

// Confirmation is sent right after an appointment is booked.
func Confirmation(info AppointmentInfo) Message {
	date := tz.FormatDay(info.StartsAt, info.Timezone)
	start := tz.FormatClock(info.StartsAt, info.Timezone)
	return render("Appointment confirmed", fmt.Sprintf("Appointment confirmed: %s %s", date, start), info)
}

// Reminder is sent by the dispatcher; label is "24h" or "2h".
func Reminder(info AppointmentInfo, label string) Message {
	date := tz.FormatDay(info.StartsAt, info.Timezone)
	start := tz.FormatClock(info.StartsAt, info.Timezone)
	heading := fmt.Sprintf("Appointment reminder (%s)", label)
	return render(heading, fmt.Sprintf("%s: %s %s", heading, date, start), info)
}

func render(heading, subject string, info AppointmentInfo) Message {
	date := tz.FormatDay(info.StartsAt, info.Timezone)
	start := tz.FormatClock(info.StartsAt, info.Timezone)
	end := tz.FormatClock(info.EndsAt, info.Timezone)

	var h strings.Builder
	h.WriteString(`<div style="font-family: ui-sans-serif, system-ui; line-height:1.5">`)
	fmt.Fprintf(&h, `<h2 style="margin:0 0 12px">%s</h2>`, html.EscapeString(heading))
	fmt.Fprintf(&h, `<p style="margin:0 0 10px"><b>%s</b></p>`, html.EscapeString(info.BusinessName))
	fmt.Fprintf(&h, `<p style="margin:0 0 10px"><b>Client:</b> %s</p>`, html.EscapeString(info.ClientName))
	fmt.Fprintf(&h, `<p style="margin:0 0 10px"><b>Date:</b> %s</p>`, html.EscapeString(date))
	fmt.Fprintf(&h, `<p style="margin:0 0 10px"><b>Time:</b> %s to %s</p>`, start, end)
	if info.Notes != "" {
		fmt.Fprintf(&h, `<p style="margin:0 0 10px"><b>Notes:</b> %s</p>`, html.EscapeString(info.Notes))
	}
	fmt.Fprintf(&h, `<p style="margin:14px 0 0; color:#666; font-size:12px">Time zone: %s</p>`, html.EscapeString(info.Timezone))
	h.WriteString(`</div>`)

	var t strings.Builder
	fmt.Fprintf(&t, "%s\r\n\r\n", heading)
	fmt.Fprintf(&t, "%s\r\n", info.BusinessName)
	fmt.Fprintf(&t, "Client: %s\r\n", info.ClientName)
	fmt.Fprintf(&t, "Date: %s\r\n", date)
	fmt.Fprintf(&t, "Time: %s to %s\r\n", start, end)
	if info.Notes != "" {
		fmt.Fprintf(&t, "Notes: %s\r\n", info.Notes)
	}
	fmt.Fprintf(&t, "Time zone: %s\r\n", info.Timezone)

	return Message{Subject: subject, HTML: h.String(), Text: t.String()}
}
