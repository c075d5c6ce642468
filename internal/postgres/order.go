package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appetit/checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// Create inserts the order, its items and their modifications in one
// transaction. A collision on the order number unique constraint maps to
// order.ErrNumberTaken so the caller can regenerate and retry.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			number, user_id, fulfillment, address_text, lat, lng,
			status, subtotal, discount, total, promocode,
			paid, payment_meth,
			utm_source, utm_medium, utm_campaign, ga_client_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`,
		o.Number, o.UserID, o.Fulfillment, o.AddressText, o.Lat, o.Lng,
		o.Status, o.Subtotal, o.Discount, o.Total, o.Promocode,
		o.Paid, o.PaymentMeth,
		o.UTMSource, o.UTMMedium, o.UTMCampaign, o.GAClientID,
		o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_number_key" {
			return order.ErrNumberTaken
		}
		return errors.Wrap(err, "inserting order")
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, item_id, name_snapshot, qty, price_at_moment)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.OrderID, item.ItemID, item.NameSnapshot, item.Qty, item.PriceAtMoment,
		).Scan(&item.ID)
		if err != nil {
			return errors.Wrap(err, "inserting order item")
		}

		for j := range item.Modifications {
			mod := &item.Modifications[j]
			mod.OrderItemID = item.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO order_item_modifications (order_item_id, modification_type_id, action)
				VALUES ($1, $2, $3)
				RETURNING id`,
				mod.OrderItemID, mod.ModificationTypeID, mod.Action,
			).Scan(&mod.ID)
			if err != nil {
				return errors.Wrap(err, "inserting item modification")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "committing order")
	}
	return nil
}

const orderColumns = `
	id, number, user_id, fulfillment, address_text, lat, lng,
	status, subtotal, discount, total, promocode,
	paid, payment_meth,
	utm_source, utm_medium, utm_campaign, ga_client_id,
	created_at`

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.Fulfillment, &o.AddressText, &o.Lat, &o.Lng,
		&o.Status, &o.Subtotal, &o.Discount, &o.Total, &o.Promocode,
		&o.Paid, &o.PaymentMeth,
		&o.UTMSource, &o.UTMMedium, &o.UTMCampaign, &o.GAClientID,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Get returns one order with its items and modifications.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %d", id)
	}

	if err := r.loadItems(ctx, []*order.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByItemID returns the order that owns the given order item.
func (r *OrderRepository) GetByItemID(ctx context.Context, orderItemID int64) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = (SELECT order_id FROM order_items WHERE id = $1)`, orderItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order by item %d", orderItemID)
	}

	if err := r.loadItems(ctx, []*order.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByUser returns the user's orders newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "querying orders")
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating orders")
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems materializes items and modifications for the given orders with
// one batch query each.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*order.Order, len(orders))
	orderIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		orderIDs = append(orderIDs, o.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, item_id, name_snapshot, qty, price_at_moment
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, orderIDs)
	if err != nil {
		return errors.Wrap(err, "querying order items")
	}
	defer rows.Close()

	var itemIDs []int64
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.NameSnapshot, &it.Qty, &it.PriceAtMoment); err != nil {
			return errors.Wrap(err, "scanning order item")
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
		itemIDs = append(itemIDs, it.ID)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterating order items")
	}
	rows.Close()

	if len(itemIDs) == 0 {
		return nil
	}

	// Index item slots only after every append, so the pointers survive.
	itemsByID := make(map[int64]*order.Item, len(itemIDs))
	for _, o := range orders {
		for i := range o.Items {
			itemsByID[o.Items[i].ID] = &o.Items[i]
		}
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, order_item_id, modification_type_id, action
		FROM order_item_modifications
		WHERE order_item_id = ANY($1)
		ORDER BY id`, itemIDs)
	if err != nil {
		return errors.Wrap(err, "querying item modifications")
	}
	defer rows.Close()

	for rows.Next() {
		var m order.ItemModification
		if err := rows.Scan(&m.ID, &m.OrderItemID, &m.ModificationTypeID, &m.Action); err != nil {
			return errors.Wrap(err, "scanning item modification")
		}
		item := itemsByID[m.OrderItemID]
		item.Modifications = append(item.Modifications, m)
	}
	return errors.Wrap(rows.Err(), "iterating item modifications")
}

// UpdateStatus sets the status of one order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, st order.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, id, st)
	if err != nil {
		return errors.Wrapf(err, "updating status of order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ReplaceItemModifications swaps the modification set of one order item
// atomically: the old rows are deleted and the new ones inserted in the
// same transaction.
func (r *OrderRepository) ReplaceItemModifications(ctx context.Context, orderItemID int64, mods []order.ItemModification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM order_item_modifications WHERE order_item_id = $1`, orderItemID); err != nil {
		return errors.Wrap(err, "deleting old modifications")
	}

	for _, m := range mods {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_item_modifications (order_item_id, modification_type_id, action)
			VALUES ($1, $2, $3)`,
			orderItemID, m.ModificationTypeID, m.Action); err != nil {
			return errors.Wrap(err, "inserting modification")
		}
	}

	return errors.Wrap(tx.Commit(ctx), "committing modifications")
}
