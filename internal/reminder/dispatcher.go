// Package reminder implements the scan-and-send pass that emails clients
// before their appointments. Each pass is a single bounded sweep; at-most-once
// delivery per (appointment, kind) is guaranteed by a uniqueness-locked
// notification row, not by any in-process coordination.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"terminbuddy/internal/email"
)

type Kind string

const (
	Kind24Hour Kind = "REMINDER_24H"
	Kind2Hour  Kind = "REMINDER_2H"
)

// Lead is how far before the appointment start a reminder of this kind is due.
func (k Kind) Lead() time.Duration {
	if k == Kind2Hour {
		return 2 * time.Hour
	}
	return 24 * time.Hour
}

func (k Kind) Label() string {
	if k == Kind2Hour {
		return "2h"
	}
	return "24h"
}

// Candidate is one appointment due for a reminder, joined with the client and
// business fields the email template needs.
type Candidate struct {
	AppointmentID string
	BusinessID    string
	BusinessName  string
	Timezone      string
	ClientName    string
	ClientEmail   string
	ClientPhone   string
	StartsAt      time.Time
	EndsAt        time.Time
	Notes         string
}

// Store is the persistence surface of the dispatcher. Claim must be atomic:
// exactly one concurrent caller wins for a given (appointment, kind).
type Store interface {
	ListDue(ctx context.Context, kind Kind, from, to time.Time, limit int) ([]Candidate, error)
	Claim(ctx context.Context, kind Kind, c Candidate) (bool, error)
	Release(ctx context.Context, kind Kind, appointmentID string) error
}

type Summary struct {
	Kind          Kind `json:"kind"`
	LeadMinutes   int  `json:"lead_minutes"`
	WindowMinutes int  `json:"window_minutes"`
	Total         int  `json:"total"`
	Sent          int  `json:"sent"`
	Skipped       int  `json:"skipped"`
	Failed        int  `json:"failed"`
}

type Config struct {
	Enable24Hour bool
	Enable2Hour  bool
	Window       time.Duration
	BatchLimit   int
}

type Dispatcher struct {
	store  Store
	sender email.Sender
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

func NewDispatcher(store Store, sender email.Sender, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 250
	}
	return &Dispatcher{
		store:  store,
		sender: sender,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run executes one pass over all enabled kinds and returns per-kind summaries.
// A candidate query failure aborts the run; individual send failures do not.
func (d *Dispatcher) Run(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	kinds := []struct {
		kind    Kind
		enabled bool
	}{
		{Kind24Hour, d.cfg.Enable24Hour},
		{Kind2Hour, d.cfg.Enable2Hour},
	}
	for _, k := range kinds {
		if !k.enabled {
			continue
		}
		s, err := d.runKind(ctx, k.kind)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (d *Dispatcher) runKind(ctx context.Context, kind Kind) (Summary, error) {
	summary := Summary{
		Kind:          kind,
		LeadMinutes:   int(kind.Lead().Minutes()),
		WindowMinutes: int(d.cfg.Window.Minutes()),
	}

	target := d.now().Add(kind.Lead())
	from := target.Add(-d.cfg.Window)
	to := target.Add(d.cfg.Window)

	candidates, err := d.store.ListDue(ctx, kind, from, to, d.cfg.BatchLimit)
	if err != nil {
		return summary, err
	}
	summary.Total = len(candidates)

	for _, c := range candidates {
		if c.ClientEmail == "" {
			summary.Skipped++
			continue
		}

		claimed, err := d.store.Claim(ctx, kind, c)
		if err != nil {
			return summary, err
		}
		if !claimed {
			// Another pass already owns this send.
			summary.Skipped++
			continue
		}

		msg := email.Reminder(email.AppointmentInfo{
			BusinessName: c.BusinessName,
			Timezone:     c.Timezone,
			ClientName:   c.ClientName,
			ClientEmail:  c.ClientEmail,
			ClientPhone:  c.ClientPhone,
			StartsAt:     c.StartsAt,
			EndsAt:       c.EndsAt,
			Notes:        c.Notes,
		}, kind.Label())

		if err := d.sender.Send(c.ClientEmail, msg); err != nil {
			summary.Failed++
			d.logger.Error("reminder send failed",
				"err", err,
				"kind", kind,
				"appointment_id", c.AppointmentID,
			)
			// Release the lock so the next pass retries this send.
			if relErr := d.store.Release(ctx, kind, c.AppointmentID); relErr != nil {
				d.logger.Error("reminder lock release failed",
					"err", relErr,
					"kind", kind,
					"appointment_id", c.AppointmentID,
				)
			}
			continue
		}
		summary.Sent++
	}

	return summary, nil
}
