package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appetit/checkout/internal/domain/promo"
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promocode case-insensitively. Returns
// promo.ErrNotFound when no row matches; activity and validity windows are
// evaluated by the caller, not filtered here.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Promocode, error) {
	var p promo.Promocode
	err := r.pool.QueryRow(ctx, `
		SELECT code, kind, value, active,
		       valid_from, valid_to,
		       max_redemptions, per_user_limit, min_subtotal
		FROM promocodes
		WHERE UPPER(code) = UPPER($1)`, code).
		Scan(&p.Code, &p.Kind, &p.Value, &p.Active,
			&p.ValidFrom, &p.ValidTo,
			&p.MaxRedemptions, &p.PerUserLimit, &p.MinSubtotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding promocode %q", code)
	}
	return &p, nil
}
