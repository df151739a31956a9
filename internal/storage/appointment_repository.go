package storage

import (
	"context"
	"fmt"
	"time"

	"terminbuddy/internal/model"
	"terminbuddy/libs/db"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// Conflict describes the appointment blocking a candidate interval; its time
// range and client name go into the 409 response.
type Conflict struct {
	AppointmentID string
	StartsAt      time.Time
	EndsAt        time.Time
	ClientName    string
}

// AppointmentDetail joins the client and business fields needed by the ICS
// export and the confirmation email.
type AppointmentDetail struct {
	model.Appointment
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	BusinessName string
	Timezone     string
}

// FindOverlap returns the first non-cancelled appointment of the business
// whose [starts_at, ends_at) intersects the candidate interval, excluding the
// appointment being edited. The check-then-write sequence is not isolated
// from concurrent writers; two simultaneous creations for the same slot can
// both pass.
func (r *AppointmentRepository) FindOverlap(ctx context.Context, businessID string, startsAt, endsAt time.Time, excludeID string) (*Conflict, error) {
	var exclude any
	if excludeID != "" {
		exclude = excludeID
	}

	var c Conflict
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.starts_at, a.ends_at, cl.name
		FROM appointments a
		JOIN clients cl ON cl.id = a.client_id
		WHERE a.business_id = $1
			AND a.status <> 'CANCELLED'
			AND a.starts_at < $3
			AND a.ends_at > $2
			AND ($4::uuid IS NULL OR a.id <> $4::uuid)
		ORDER BY a.starts_at ASC
		LIMIT 1
	`, businessID, startsAt, endsAt, exclude).Scan(&c.AppointmentID, &c.StartsAt, &c.EndsAt, &c.ClientName)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, business_id, client_id, starts_at, ends_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, a.ID, a.BusinessID, a.ClientID, a.StartsAt, a.EndsAt, a.Status, a.Notes)
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, businessID, id string) (model.Appointment, error) {
	var a model.Appointment
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, client_id, starts_at, ends_at, status, COALESCE(notes, ''), created_at
		FROM appointments
		WHERE id = $1 AND business_id = $2
	`, id, businessID).Scan(&a.ID, &a.BusinessID, &a.ClientID, &a.StartsAt, &a.EndsAt, &a.Status, &a.Notes, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentRepository) GetDetail(ctx context.Context, businessID, id string) (AppointmentDetail, error) {
	var d AppointmentDetail
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.business_id, a.client_id, a.starts_at, a.ends_at, a.status, COALESCE(a.notes, ''), a.created_at,
			cl.name, COALESCE(cl.email, ''), COALESCE(cl.phone, ''),
			b.name, b.timezone
		FROM appointments a
		JOIN clients cl ON cl.id = a.client_id
		JOIN businesses b ON b.id = a.business_id
		WHERE a.id = $1 AND a.business_id = $2
	`, id, businessID).Scan(
		&d.ID, &d.BusinessID, &d.ClientID, &d.StartsAt, &d.EndsAt, &d.Status, &d.Notes, &d.CreatedAt,
		&d.ClientName, &d.ClientEmail, &d.ClientPhone,
		&d.BusinessName, &d.Timezone,
	)
	if err != nil {
		return AppointmentDetail{}, err
	}
	return d, nil
}

// ListByBusiness returns appointments ordered by start, optionally restricted
// to a [from, to) range for the calendar view.
func (r *AppointmentRepository) ListByBusiness(ctx context.Context, businessID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, client_id, starts_at, ends_at, status, COALESCE(notes, ''), created_at
		FROM appointments
		WHERE business_id = $1
			AND ($2::timestamptz IS NULL OR starts_at >= $2)
			AND ($3::timestamptz IS NULL OR starts_at < $3)
		ORDER BY starts_at ASC
		LIMIT $4
	`, businessID, nullableTime(from), nullableTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.ClientID, &a.StartsAt, &a.EndsAt, &a.Status, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// Reschedule rewrites the interval, client and notes of an appointment.
func (r *AppointmentRepository) Reschedule(ctx context.Context, businessID, id, clientID string, startsAt, endsAt time.Time, notes string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET client_id = $3,
			starts_at = $4,
			ends_at = $5,
			notes = NULLIF($6, '')
		WHERE id = $1 AND business_id = $2
	`, id, businessID, clientID, startsAt, endsAt, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetStatus is a direct, unconditional status write. The status vocabulary is
// checked here so a bad caller fails before the CHECK constraint does.
func (r *AppointmentRepository) SetStatus(ctx context.Context, businessID, id, status string) (bool, error) {
	if !model.ValidStatus(status) {
		return false, fmt.Errorf("invalid appointment status %q", status)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1 AND business_id = $2
	`, id, businessID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DashboardCounts backs the dashboard summary endpoint.
type DashboardCounts struct {
	ClientCount    int
	TodayCount     int
	UpcomingCount  int
	CompletedCount int
}

func (r *AppointmentRepository) Dashboard(ctx context.Context, businessID string, dayStart, dayEnd, now time.Time) (DashboardCounts, error) {
	var c DashboardCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM clients WHERE business_id = $1),
			(SELECT COUNT(*) FROM appointments WHERE business_id = $1 AND status <> 'CANCELLED' AND starts_at >= $2 AND starts_at < $3),
			(SELECT COUNT(*) FROM appointments WHERE business_id = $1 AND status = 'BOOKED' AND starts_at >= $4),
			(SELECT COUNT(*) FROM appointments WHERE business_id = $1 AND status = 'COMPLETED')
	`, businessID, dayStart, dayEnd, now).Scan(&c.ClientCount, &c.TodayCount, &c.UpcomingCount, &c.CompletedCount)
	return c, err
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
