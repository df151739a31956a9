package storage

import (
	"context"

	"terminbuddy/internal/model"
	"terminbuddy/libs/db"
)

// ClientRepository scopes every operation to a business id so one tenant can
// never read or mutate another tenant's rows.
type ClientRepository struct {
	pool *db.Pool
}

func NewClientRepository(pool *db.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func (r *ClientRepository) Create(ctx context.Context, c model.Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (id, business_id, name, email, phone, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
	`, c.ID, c.BusinessID, c.Name, c.Email, c.Phone, c.Notes)
	return err
}

func (r *ClientRepository) Get(ctx context.Context, businessID, id string) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(notes, ''), created_at
		FROM clients
		WHERE id = $1 AND business_id = $2
	`, id, businessID).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt)
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}

func (r *ClientRepository) ListByBusiness(ctx context.Context, businessID string) ([]model.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(notes, ''), created_at
		FROM clients
		WHERE business_id = $1
		ORDER BY name ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return clients, nil
}

func (r *ClientRepository) Update(ctx context.Context, c model.Client) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients
		SET name = $3,
			email = NULLIF($4, ''),
			phone = NULLIF($5, ''),
			notes = NULLIF($6, '')
		WHERE id = $1 AND business_id = $2
	`, c.ID, c.BusinessID, c.Name, c.Email, c.Phone, c.Notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ClientRepository) CountAppointments(ctx context.Context, businessID, clientID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE business_id = $1 AND client_id = $2
	`, businessID, clientID).Scan(&n)
	return n, err
}

func (r *ClientRepository) Delete(ctx context.Context, businessID, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM clients
		WHERE id = $1 AND business_id = $2
	`, id, businessID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
