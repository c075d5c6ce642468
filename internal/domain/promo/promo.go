// Package promo evaluates promotional codes against a cart subtotal.
// Evaluation is pure and side-effect-free: the same code, subtotal and
// clock always produce the same result.
package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/appetit/checkout/internal/domain/money"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercent discounts a percentage of the subtotal.
	KindPercent Kind = "percent"
	// KindAmount discounts a fixed amount, capped at the subtotal.
	KindAmount Kind = "amount"
)

// Reason enumerates why a code was rejected. The values are part of the
// API contract and must stay stable.
type Reason string

const (
	ReasonInvalidOrInactive Reason = "invalid_or_inactive"
	ReasonNotStarted        Reason = "not_started"
	ReasonExpired           Reason = "expired"
	ReasonMinSubtotal       Reason = "min_subtotal_not_met"
)

// ErrNotFound is returned by repositories when no promocode matches.
var ErrNotFound = errors.New("promocode not found")

// Promocode is a discount rule. MaxRedemptions and PerUserLimit are
// declared in the data model but not enforced here: there is no
// redemption log, so concurrent use of a capped code is not guaranteed
// to stay under the cap.
type Promocode struct {
	Code           string
	Kind           Kind
	Value          money.Money
	Active         bool
	ValidFrom      *time.Time
	ValidTo        *time.Time
	MaxRedemptions *int
	PerUserLimit   *int
	MinSubtotal    *money.Money
}

// Result is the outcome of evaluating a code. An invalid result carries
// a Reason and a zero discount; a valid one carries the clamped discount.
type Result struct {
	Valid    bool
	Discount money.Money
	Reason   Reason
}

// Repository provides promocode lookup by code. Lookup is case-insensitive
// at the storage layer.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Promocode, error)
}
