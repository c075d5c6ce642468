// Package pricing turns a client cart into a fully-priced quote: line
// totals, subtotal, promo discount and final total, with every amount
// rounded at its aggregation boundary.
package pricing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/appetit/checkout/internal/domain/catalog"
	"github.com/appetit/checkout/internal/domain/money"
	"github.com/appetit/checkout/internal/domain/promo"
)

// Modification actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// ErrEmptyCart is returned when pricing is requested for a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// ItemUnavailableError indicates a cart line references a missing or
// inactive menu item.
type ItemUnavailableError struct {
	ItemID int64
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("item %d is unavailable", e.ItemID)
}

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ItemID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be positive for item %d", e.ItemID)
}

// ModificationUnavailableError indicates a missing or inactive
// modification type reference.
type ModificationUnavailableError struct {
	TypeID int64
}

func (e *ModificationUnavailableError) Error() string {
	return fmt.Sprintf("modification type %d is unavailable", e.TypeID)
}

// InvalidActionError indicates a modification action outside add|remove.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid modification action %q", e.Action)
}

// Modification is a requested customization on a cart line.
type Modification struct {
	TypeID int64
	Action string
}

// CartLine is one client-supplied cart entry. It is ephemeral and never
// persisted as such.
type CartLine struct {
	ItemID        int64
	Qty           int
	Modifications []Modification
}

// Line is a priced cart line carrying the catalog snapshot used to
// price it.
type Line struct {
	ItemID        int64
	Name          string
	Qty           int
	UnitPrice     money.Money
	LineTotal     money.Money
	Modifications []Modification
}

// Quote is the outcome of pricing a cart. Subtotal and Discount are each
// rounded independently before Total combines them.
type Quote struct {
	Subtotal money.Money
	Discount money.Money
	Total    money.Money
	Promo    promo.Result
	Lines    []Line
}

// Engine prices carts against the live catalog with optional promo codes.
type Engine struct {
	catalog catalog.Repository
	promos  *promo.Service
}

// NewEngine creates a pricing Engine.
func NewEngine(cat catalog.Repository, promos *promo.Service) *Engine {
	return &Engine{catalog: cat, promos: promos}
}

// Price validates and prices the cart. Items and modification types are
// resolved with one batch lookup each. An invalid promo code never fails
// pricing: it degrades to a zero discount, with the rejection reason
// carried in Quote.Promo for callers that want to surface it.
func (e *Engine) Price(ctx context.Context, lines []CartLine, promoCode string) (*Quote, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	itemIDs := make([]int64, 0, len(lines))
	var modTypeIDs []int64
	for _, l := range lines {
		if l.Qty <= 0 {
			return nil, &InvalidQuantityError{ItemID: l.ItemID}
		}
		itemIDs = append(itemIDs, l.ItemID)
		for _, m := range l.Modifications {
			if m.Action != ActionAdd && m.Action != ActionRemove {
				return nil, &InvalidActionError{Action: m.Action}
			}
			modTypeIDs = append(modTypeIDs, m.TypeID)
		}
	}

	items, err := e.catalog.ItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve items")
	}

	if len(modTypeIDs) > 0 {
		types, err := e.catalog.ModificationTypesByIDs(ctx, modTypeIDs)
		if err != nil {
			return nil, errors.Wrap(err, "resolve modification types")
		}
		for _, id := range modTypeIDs {
			mt, ok := types[id]
			if !ok || !mt.Active {
				return nil, &ModificationUnavailableError{TypeID: id}
			}
		}
	}

	quote := &Quote{Lines: make([]Line, 0, len(lines))}
	subtotal := money.Zero
	for _, l := range lines {
		item, ok := items[l.ItemID]
		if !ok || !item.Active {
			return nil, &ItemUnavailableError{ItemID: l.ItemID}
		}

		lineTotal := money.LineTotal(item.Price, l.Qty)
		subtotal = subtotal.Add(lineTotal)
		quote.Lines = append(quote.Lines, Line{
			ItemID:        item.ID,
			Name:          item.Name,
			Qty:           l.Qty,
			UnitPrice:     item.Price,
			LineTotal:     lineTotal,
			Modifications: l.Modifications,
		})
	}

	quote.Subtotal = money.Round2(subtotal)

	res, err := e.promos.Evaluate(ctx, promoCode, quote.Subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate promocode")
	}
	quote.Promo = res
	if res.Valid {
		quote.Discount = money.Round2(res.Discount)
	} else {
		quote.Discount = money.Zero
	}

	quote.Total = money.Total(quote.Subtotal, quote.Discount)

	return quote, nil
}
