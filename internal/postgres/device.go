package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appetit/checkout/internal/notify"
)

var _ notify.DeviceTokens = (*DeviceRepository)(nil)

// DeviceRepository resolves FCM device tokens backed by PostgreSQL.
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository returns a DeviceRepository that uses the given pool.
func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

// TokensByUser returns all registered device tokens for a user. No devices
// is not an error, just an empty slice.
func (r *DeviceRepository) TokensByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT fcm_token FROM devices WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying devices")
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, errors.Wrap(err, "scanning device token")
		}
		tokens = append(tokens, token)
	}
	return tokens, errors.Wrap(rows.Err(), "iterating devices")
}
