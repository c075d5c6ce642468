package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appetit/checkout/internal/domain/catalog"
	"github.com/appetit/checkout/internal/domain/money"
	"github.com/appetit/checkout/internal/domain/promo"
)

func dec(s string) money.Money {
	return decimal.RequireFromString(s)
}

type fakeCatalog struct {
	items map[int64]catalog.Item
	types map[int64]catalog.ModificationType
}

func (f *fakeCatalog) ItemsByIDs(_ context.Context, ids []int64) (map[int64]catalog.Item, error) {
	out := make(map[int64]catalog.Item)
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (f *fakeCatalog) ModificationTypesByIDs(_ context.Context, ids []int64) (map[int64]catalog.ModificationType, error) {
	out := make(map[int64]catalog.ModificationType)
	for _, id := range ids {
		if mt, ok := f.types[id]; ok {
			out[id] = mt
		}
	}
	return out, nil
}

type fakePromoRepo struct {
	byCode map[string]*promo.Promocode
}

func (f *fakePromoRepo) FindByCode(_ context.Context, code string) (*promo.Promocode, error) {
	if p, ok := f.byCode[code]; ok {
		return p, nil
	}
	return nil, promo.ErrNotFound
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cat := &fakeCatalog{
		items: map[int64]catalog.Item{
			1: {ID: 1, Name: "Doner", Price: dec("250.00"), Active: true},
			2: {ID: 2, Name: "Lemonade", Price: dec("120.50"), Active: true},
			3: {ID: 3, Name: "Retired Combo", Price: dec("500.00"), Active: false},
		},
		types: map[int64]catalog.ModificationType{
			10: {ID: 10, Name: "Extra sauce", Active: true},
			11: {ID: 11, Name: "No onions", Active: true},
			12: {ID: 12, Name: "Old sauce", Active: false},
		},
	}
	past := time.Now().Add(-24 * time.Hour)
	promos := promo.NewService(&fakePromoRepo{byCode: map[string]*promo.Promocode{
		"SAVE10": {Code: "SAVE10", Kind: promo.KindPercent, Value: dec("10"), Active: true},
		"OLD":    {Code: "OLD", Kind: promo.KindPercent, Value: dec("10"), Active: true, ValidTo: &past},
	}})
	return NewEngine(cat, promos)
}

func TestPrice_NoPromo(t *testing.T) {
	e := newEngine(t)

	quote, err := e.Price(context.Background(), []CartLine{
		{ItemID: 1, Qty: 2},
		{ItemID: 2, Qty: 1},
	}, "")
	require.NoError(t, err)

	assert.True(t, dec("620.50").Equal(quote.Subtotal), "got %s", quote.Subtotal)
	assert.True(t, quote.Discount.IsZero())
	assert.True(t, dec("620.50").Equal(quote.Total))
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "Doner", quote.Lines[0].Name)
	assert.True(t, dec("500.00").Equal(quote.Lines[0].LineTotal))
	assert.True(t, dec("120.50").Equal(quote.Lines[1].LineTotal))
}

func TestPrice_PercentPromo(t *testing.T) {
	e := newEngine(t)

	quote, err := e.Price(context.Background(), []CartLine{
		{ItemID: 1, Qty: 4}, // 1000.00
	}, "SAVE10")
	require.NoError(t, err)

	assert.True(t, quote.Promo.Valid)
	assert.True(t, dec("1000.00").Equal(quote.Subtotal))
	assert.True(t, dec("100.00").Equal(quote.Discount))
	assert.True(t, dec("900.00").Equal(quote.Total))
}

func TestPrice_InvalidPromoDegradesToZeroDiscount(t *testing.T) {
	e := newEngine(t)

	quote, err := e.Price(context.Background(), []CartLine{{ItemID: 1, Qty: 1}}, "OLD")
	require.NoError(t, err, "an expired promo must not abort checkout")

	assert.False(t, quote.Promo.Valid)
	assert.Equal(t, promo.ReasonExpired, quote.Promo.Reason)
	assert.True(t, quote.Discount.IsZero())
	assert.True(t, dec("250.00").Equal(quote.Total), "full subtotal charged")
}

func TestPrice_UnknownPromoDegradesToZeroDiscount(t *testing.T) {
	e := newEngine(t)

	quote, err := e.Price(context.Background(), []CartLine{{ItemID: 1, Qty: 1}}, "BOGUS")
	require.NoError(t, err)
	assert.False(t, quote.Promo.Valid)
	assert.Equal(t, promo.ReasonInvalidOrInactive, quote.Promo.Reason)
	assert.True(t, dec("250.00").Equal(quote.Total))
}

func TestPrice_Rejections(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		_, err := e.Price(ctx, nil, "")
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := e.Price(ctx, []CartLine{{ItemID: 1, Qty: 0}}, "")
		var iq *InvalidQuantityError
		require.ErrorAs(t, err, &iq)
		assert.Equal(t, int64(1), iq.ItemID)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := e.Price(ctx, []CartLine{{ItemID: 99, Qty: 1}}, "")
		var iu *ItemUnavailableError
		require.ErrorAs(t, err, &iu)
		assert.Equal(t, int64(99), iu.ItemID)
	})

	t.Run("inactive item", func(t *testing.T) {
		_, err := e.Price(ctx, []CartLine{{ItemID: 3, Qty: 1}}, "")
		var iu *ItemUnavailableError
		require.ErrorAs(t, err, &iu)
	})

	t.Run("inactive modification type", func(t *testing.T) {
		_, err := e.Price(ctx, []CartLine{{
			ItemID: 1, Qty: 1,
			Modifications: []Modification{{TypeID: 12, Action: ActionAdd}},
		}}, "")
		var mu *ModificationUnavailableError
		require.ErrorAs(t, err, &mu)
		assert.Equal(t, int64(12), mu.TypeID)
	})

	t.Run("unknown modification type", func(t *testing.T) {
		_, err := e.Price(ctx, []CartLine{{
			ItemID: 1, Qty: 1,
			Modifications: []Modification{{TypeID: 77, Action: ActionRemove}},
		}}, "")
		var mu *ModificationUnavailableError
		require.ErrorAs(t, err, &mu)
	})

	t.Run("invalid action", func(t *testing.T) {
		_, err := e.Price(ctx, []CartLine{{
			ItemID: 1, Qty: 1,
			Modifications: []Modification{{TypeID: 10, Action: "replace"}},
		}}, "")
		var ia *InvalidActionError
		require.ErrorAs(t, err, &ia)
	})
}

func TestPrice_ValidModificationsCarriedOnLines(t *testing.T) {
	e := newEngine(t)

	quote, err := e.Price(context.Background(), []CartLine{{
		ItemID: 1, Qty: 1,
		Modifications: []Modification{
			{TypeID: 10, Action: ActionAdd},
			{TypeID: 11, Action: ActionRemove},
		},
	}}, "")
	require.NoError(t, err)
	require.Len(t, quote.Lines, 1)
	assert.Len(t, quote.Lines[0].Modifications, 2)
	// Modifications never change the price.
	assert.True(t, dec("250.00").Equal(quote.Total))
}
