package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appetit/checkout/internal/domain/address"
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// FindByUserAndText looks up a saved address by its exact text. Returns
// address.ErrNotFound when the user has no such address.
func (r *AddressRepository) FindByUserAndText(ctx context.Context, userID int64, text string) (*address.Address, error) {
	var a address.Address
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, text, lat, lng, created_at
		FROM saved_addresses
		WHERE user_id = $1 AND text = $2`, userID, text).
		Scan(&a.ID, &a.UserID, &a.Text, &a.Lat, &a.Lng, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrap(err, "finding saved address")
	}
	return &a, nil
}

// Create saves a new address. A concurrent duplicate is tolerated via the
// unique constraint and ON CONFLICT DO NOTHING.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO saved_addresses (id, user_id, text, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, text) DO NOTHING`,
		a.ID, a.UserID, a.Text, a.Lat, a.Lng, a.CreatedAt)
	return errors.Wrap(err, "creating saved address")
}
