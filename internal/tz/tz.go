// Package tz converts between the wall-clock datetime strings used by booking
// forms ("2006-01-02T15:04", no offset) and absolute instants, using the IANA
// zone of the business.
package tz

import (
	"errors"
	"fmt"
	"time"
)

// Layout matches HTML datetime-local values.
const Layout = "2006-01-02T15:04"

// ErrNonexistentTime marks a wall-clock time that does not exist in the target
// zone (spring-forward DST gap). Policy: such inputs are rejected outright
// rather than silently shifted.
var ErrNonexistentTime = errors.New("wall-clock time does not exist in this time zone")

// ToInstant interprets a wall-clock value in the given IANA zone and returns
// the absolute instant it denotes.
func ToInstant(value, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time zone %q: %w", zone, err)
	}

	// Parse in UTC first so we get the raw fields without any zone math.
	fields, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q: %w", value, err)
	}

	t := time.Date(fields.Year(), fields.Month(), fields.Day(), fields.Hour(), fields.Minute(), 0, 0, loc)

	// time.Date normalizes times inside a DST gap to a real instant whose
	// wall clock differs from the input. Detect that and reject.
	if t.Format(Layout) != value {
		return time.Time{}, fmt.Errorf("%w: %s in %s", ErrNonexistentTime, value, zone)
	}
	return t, nil
}

// Render formats an absolute instant as the wall-clock value it shows in the
// given zone. Inverse of ToInstant for all accepted inputs.
func Render(t time.Time, zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("invalid time zone %q: %w", zone, err)
	}
	return t.In(loc).Format(Layout), nil
}

// InZone returns t shifted into the zone, falling back to UTC when the zone
// name is unknown. Used for display formatting where failing is not useful.
func InZone(t time.Time, zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// FormatDay renders the date part for emails, e.g. "Monday, 02 March 2026".
func FormatDay(t time.Time, zone string) string {
	return InZone(t, zone).Format("Monday, 02 January 2006")
}

// FormatClock renders the 24h time part for emails, e.g. "14:30".
func FormatClock(t time.Time, zone string) string {
	return InZone(t, zone).Format("15:04")
}
