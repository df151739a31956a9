package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"terminbuddy/internal/model"
	"terminbuddy/libs/db"
)

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type BusinessRepository struct {
	pool *db.Pool
}

func NewBusinessRepository(pool *db.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

func (r *BusinessRepository) Create(ctx context.Context, b model.Business) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO businesses (id, owner_id, name, timezone)
		VALUES ($1, $2, $3, $4)
	`, b.ID, b.OwnerID, b.Name, b.Timezone)
	return err
}

// GetByOwner returns the owner's single business. One business per owner is
// application-enforced, so the query just takes the first row.
func (r *BusinessRepository) GetByOwner(ctx context.Context, ownerID string) (model.Business, error) {
	var b model.Business
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, timezone, created_at
		FROM businesses
		WHERE owner_id = $1
		ORDER BY created_at
		LIMIT 1
	`, ownerID).Scan(&b.ID, &b.OwnerID, &b.Name, &b.Timezone, &b.CreatedAt)
	if err != nil {
		return model.Business{}, err
	}
	return b, nil
}

func (r *BusinessRepository) ExistsForOwner(ctx context.Context, ownerID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM businesses WHERE owner_id = $1)
	`, ownerID).Scan(&exists)
	return exists, err
}
