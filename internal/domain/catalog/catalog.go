// Package catalog defines the read-only contracts the checkout core uses
// to resolve menu items and modification types. Catalog management itself
// (CRUD, images, categories) lives outside this service.
package catalog

import (
	"context"

	"github.com/appetit/checkout/internal/domain/money"
)

// Item is a menu item as the checkout sees it. Price and name are copied
// into order line snapshots at checkout time.
type Item struct {
	ID     int64
	Name   string
	Price  money.Money
	Active bool
}

// ModificationType describes an allowed customization (extra sauce,
// remove onions, ...). Inactive types reject the whole checkout.
type ModificationType struct {
	ID     int64
	Name   string
	Active bool
}

// Repository provides bulk lookups so a checkout resolves its whole cart
// with a bounded number of queries.
type Repository interface {
	ItemsByIDs(ctx context.Context, ids []int64) (map[int64]Item, error)
	ModificationTypesByIDs(ctx context.Context, ids []int64) (map[int64]ModificationType, error)
}
