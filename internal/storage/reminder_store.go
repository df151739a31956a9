package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"terminbuddy/internal/reminder"
	"terminbuddy/libs/db"
)

// ReminderStore backs the dispatcher. The notification_logs table carries a
// UNIQUE (appointment_id, kind) constraint; inserting a row is the claim that
// makes a send at-most-once across overlapping cron invocations.
type ReminderStore struct {
	pool *db.Pool
}

func NewReminderStore(pool *db.Pool) *ReminderStore {
	return &ReminderStore{pool: pool}
}

func (s *ReminderStore) ListDue(ctx context.Context, kind reminder.Kind, from, to time.Time, limit int) ([]reminder.Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.business_id, b.name, b.timezone,
			cl.name, cl.email, COALESCE(cl.phone, ''),
			a.starts_at, a.ends_at, COALESCE(a.notes, '')
		FROM appointments a
		JOIN businesses b ON b.id = a.business_id
		JOIN clients cl ON cl.id = a.client_id
		WHERE a.status <> 'CANCELLED'
			AND a.starts_at >= $1 AND a.starts_at < $2
			AND cl.email IS NOT NULL AND cl.email <> ''
			AND NOT EXISTS (
				SELECT 1 FROM notification_logs n
				WHERE n.appointment_id = a.id AND n.kind = $3
			)
		ORDER BY a.starts_at ASC
		LIMIT $4
	`, from, to, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []reminder.Candidate
	for rows.Next() {
		var c reminder.Candidate
		if err := rows.Scan(
			&c.AppointmentID, &c.BusinessID, &c.BusinessName, &c.Timezone,
			&c.ClientName, &c.ClientEmail, &c.ClientPhone,
			&c.StartsAt, &c.EndsAt, &c.Notes,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return candidates, nil
}

// Claim inserts the lock row. A unique violation means another pass already
// owns this (appointment, kind) send; that outcome is expected and returned
// as claimed=false, not as an error.
func (s *ReminderStore) Claim(ctx context.Context, kind reminder.Kind, c reminder.Candidate) (bool, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_logs (id, business_id, appointment_id, kind, to_email)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), c.BusinessID, c.AppointmentID, string(kind), c.ClientEmail)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Release drops the lock row after a failed send so the next pass retries.
func (s *ReminderStore) Release(ctx context.Context, kind reminder.Kind, appointmentID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM notification_logs
		WHERE appointment_id = $1 AND kind = $2
	`, appointmentID, string(kind))
	return err
}
