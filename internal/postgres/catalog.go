package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appetit/checkout/internal/domain/catalog"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ItemsByIDs returns the menu items for the given ids, keyed by id.
// Missing ids are simply absent from the map.
func (r *CatalogRepository) ItemsByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price, active
		FROM menu_items
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying menu items")
	}
	defer rows.Close()

	items := make(map[int64]catalog.Item, len(ids))
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Active); err != nil {
			return nil, errors.Wrap(err, "scanning menu item")
		}
		items[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating menu items")
	}
	return items, nil
}

// ModificationTypesByIDs returns the modification types for the given ids,
// keyed by id.
func (r *CatalogRepository) ModificationTypesByIDs(ctx context.Context, ids []int64) (map[int64]catalog.ModificationType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, active
		FROM modification_types
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying modification types")
	}
	defer rows.Close()

	types := make(map[int64]catalog.ModificationType, len(ids))
	for rows.Next() {
		var mt catalog.ModificationType
		if err := rows.Scan(&mt.ID, &mt.Name, &mt.Active); err != nil {
			return nil, errors.Wrap(err, "scanning modification type")
		}
		types[mt.ID] = mt
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating modification types")
	}
	return types, nil
}
