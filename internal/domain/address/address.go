// Package address holds the saved-address contract used by the checkout's
// best-effort address capture on delivery orders.
package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no saved address matches.
var ErrNotFound = errors.New("address not found")

// Address is a saved delivery address.
type Address struct {
	ID        string
	UserID    int64
	Text      string
	Lat       *float64
	Lng       *float64
	CreatedAt time.Time
}

// Repository provides saved-address lookup and creation.
type Repository interface {
	FindByUserAndText(ctx context.Context, userID int64, text string) (*Address, error)
	Create(ctx context.Context, a *Address) error
}
