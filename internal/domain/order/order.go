// Package order implements the checkout assembler: it gates on business
// hours, prices the cart, persists the order atomically with its line-item
// snapshots, and fires post-commit side effects. It also owns the order
// status lifecycle and the immutability of completed orders.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/appetit/checkout/internal/domain/money"
)

// Fulfillment enumerates how the order reaches the customer.
type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "delivery"
	FulfillmentPickup   Fulfillment = "pickup"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when an order or order item does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNumberTaken is returned by repositories when an insert hits the
	// unique constraint on the order number.
	ErrNumberTaken = errors.New("order number already taken")
	// ErrNumberConflict is returned when number generation keeps
	// colliding after the bounded retry.
	ErrNumberConflict = errors.New("order number conflict")
	// ErrAccessDenied is returned when an order does not belong to the
	// requesting user.
	ErrAccessDenied = errors.New("access denied")
)

// Order is an immutable record of a priced, accepted checkout. Monetary
// fields and item snapshots never change after creation; only Status and
// Paid advance.
type Order struct {
	ID          int64
	Number      string
	UserID      int64
	Fulfillment Fulfillment
	AddressText string
	Lat         *float64
	Lng         *float64
	Status      Status
	Subtotal    money.Money
	Discount    money.Money
	Total       money.Money
	Promocode   string
	Paid        bool
	PaymentMeth string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	GAClientID  string
	CreatedAt   time.Time
	Items       []Item
}

// Item is a line-item snapshot. Name and price are copied from the
// catalog at checkout time so later catalog edits never rewrite history.
type Item struct {
	ID            int64
	OrderID       int64
	ItemID        int64
	NameSnapshot  string
	Qty           int
	PriceAtMoment money.Money
	Modifications []ItemModification
}

// ItemModification is one applied customization on a line item.
type ItemModification struct {
	ID                 int64
	OrderItemID        int64
	ModificationTypeID int64
	Action             string
}

// Repository defines persistence for orders. Create must be atomic: the
// order row, all item rows, and all modification rows commit together or
// not at all.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	GetByItemID(ctx context.Context, orderItemID int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, st Status) error
	ReplaceItemModifications(ctx context.Context, orderItemID int64, mods []ItemModification) error
}
