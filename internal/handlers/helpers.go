package handlers

import (
	"net/mail"
	"strings"
	"time"

	"terminbuddy/internal/storage"
	"terminbuddy/internal/tz"
)

func isNotFound(err error) bool {
	return storage.IsNotFound(err)
}

func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	return err == nil && addr.Address == v
}

// parseDayParam interprets a "2006-01-02" query value as midnight in the
// business zone. Empty values yield the zero time (no bound).
func parseDayParam(value, zone string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return tz.ToInstant(value+"T00:00", zone)
}

// durationMinutes normalizes form durations; anything non-positive falls back
// to the 30-minute default.
func durationMinutes(n int) time.Duration {
	if n <= 0 {
		n = 30
	}
	return time.Duration(n) * time.Minute
}
