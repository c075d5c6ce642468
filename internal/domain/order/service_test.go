package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appetit/checkout/internal/domain/address"
	"github.com/appetit/checkout/internal/domain/catalog"
	"github.com/appetit/checkout/internal/domain/hours"
	"github.com/appetit/checkout/internal/domain/pricing"
	"github.com/appetit/checkout/internal/domain/promo"
	"github.com/appetit/checkout/internal/notify"
)

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
	codes map[string]*promo.Promocode
}

func (f *fakePromoRepo) FindByCode(_ context.Context, code string) (*promo.Promocode, error) {
	if p, ok := f.codes[code]; ok {
		return p, nil
	}
	return nil, promo.ErrNotFound
}

type fakeOrderRepo struct {
	createErrs []error // consumed per Create call, nil past the end
	creates    int
	orders     map[int64]*Order
	byItem     map[int64]*Order
	replaced   map[int64][]ItemModification
	statuses   map[int64]Status
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[int64]*Order),
		byItem:   make(map[int64]*Order),
		replaced: make(map[int64][]ItemModification),
		statuses: make(map[int64]Status),
	}
}

func (f *fakeOrderRepo) Create(_ context.Context, o *Order) error {
	idx := f.creates
	f.creates++
	if idx < len(f.createErrs) && f.createErrs[idx] != nil {
		return f.createErrs[idx]
	}
	o.ID = int64(f.creates)
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) GetByItemID(_ context.Context, itemID int64) (*Order, error) {
	o, ok := f.byItem[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, st Status) error {
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = st
	f.statuses[id] = st
	return nil
}

func (f *fakeOrderRepo) ReplaceItemModifications(_ context.Context, itemID int64, mods []ItemModification) error {
	f.replaced[itemID] = mods
	return nil
}

type fakeAddressRepo struct {
	saved     map[string]*address.Address
	createErr error
	creates   int
}

func (f *fakeAddressRepo) FindByUserAndText(_ context.Context, userID int64, text string) (*address.Address, error) {
	if a, ok := f.saved[text]; ok && a.UserID == userID {
		return a, nil
	}
	return nil, address.ErrNotFound
}

func (f *fakeAddressRepo) Create(_ context.Context, a *address.Address) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if f.saved == nil {
		f.saved = make(map[string]*address.Address)
	}
	f.saved[a.Text] = a
	return nil
}

type failingEmail struct{ calls int }

func (f *failingEmail) SendOrderCreated(context.Context, string, notify.OrderSummary) error {
	f.calls++
	return errors.New("provider down")
}

var almaty = time.FixedZone("UTC+6", 6*3600)

// monday returns 2025-06-16 (a Monday) at the given business-local time.
func monday(h, m int) time.Time {
	return time.Date(2025, 6, 16, h, m, 0, 0, almaty)
}

func testService(t *testing.T, repo Repository, addresses address.Repository, d *notify.Dispatcher) *Service {
	t.Helper()
	cat := &fakeCatalog{
		items: map[int64]catalog.Item{
			1: {ID: 1, Name: "Doner", Price: decimal.RequireFromString("250.00"), Active: true},
			2: {ID: 2, Name: "Lemonade", Price: decimal.RequireFromString("120.50"), Active: true},
		},
		types: map[int64]catalog.ModificationType{
			10: {ID: 10, Name: "no onions", Active: true},
			11: {ID: 11, Name: "extra cheese", Active: true},
			12: {ID: 12, Name: "discontinued", Active: false},
		},
	}
	promos := promo.NewService(&fakePromoRepo{codes: map[string]*promo.Promocode{
		"SAVE10": {
			Code:   "SAVE10",
			Kind:   promo.KindPercent,
			Value:  decimal.RequireFromString("10"),
			Active: true,
		},
	}})
	engine := pricing.NewEngine(cat, promos)
	schedule := hours.New(almaty, hours.Default())

	svc := NewService(schedule, engine, cat, repo, addresses, d, "APT", zap.NewNop())
	svc.now = func() time.Time { return monday(12, 0) }
	svc.intn = func(int) int { return 424242 }
	return svc
}

func TestCheckoutSuccess(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := testService(t, repo, nil, nil)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:      7,
		Fulfillment: FulfillmentDelivery,
		AddressText: "Abay 10",
		Lines: []pricing.CartLine{
			{ItemID: 1, Qty: 2, Modifications: []pricing.Modification{{TypeID: 10, Action: pricing.ActionRemove}}},
			{ItemID: 2, Qty: 1},
		},
		Promocode: "SAVE10",
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "APT-250616060000424242", o.Number)
	assert.Equal(t, StatusNew, o.Status)
	assert.Equal(t, "SAVE10", o.Promocode)
	assert.Equal(t, "cod", o.PaymentMeth)
	assert.Equal(t, "620.50", o.Subtotal.StringFixed(2))
	assert.Equal(t, "62.05", o.Discount.StringFixed(2))
	assert.Equal(t, "558.45", o.Total.StringFixed(2))

	require.Len(t, o.Items, 2)
	assert.Equal(t, "Doner", o.Items[0].NameSnapshot)
	assert.Equal(t, "250.00", o.Items[0].PriceAtMoment.StringFixed(2))
	assert.Equal(t, 2, o.Items[0].Qty)
	require.Len(t, o.Items[0].Modifications, 1)
	assert.Equal(t, int64(10), o.Items[0].Modifications[0].ModificationTypeID)
	assert.Equal(t, pricing.ActionRemove, o.Items[0].Modifications[0].Action)

	assert.Equal(t, 1, repo.creates)
}

func TestCheckoutEmptyCart(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := testService(t, repo, nil, nil)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 7})
	assert.ErrorIs(t, err, pricing.ErrEmptyCart)
	assert.Zero(t, repo.creates)
}

func TestCheckoutClosedHours(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := testService(t, repo, nil, nil)
	svc.now = func() time.Time { return monday(7, 30) } // before 09:00 opening

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID: 7,
		Lines:  []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})

	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, hours.ReasonBeforeOpening, closed.Reason)
	require.NotNil(t, closed.NextOpen)
	assert.Equal(t, monday(9, 0), closed.NextOpen.In(almaty))
	assert.Zero(t, repo.creates, "nothing may be written when closed")
}

func TestCheckoutInvalidPromoStillSucceeds(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := testService(t, repo, nil, nil)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:    7,
		Lines:     []pricing.CartLine{{ItemID: 1, Qty: 1}},
		Promocode: "NOSUCH",
	})
	require.NoError(t, err)

	assert.Empty(t, res.Order.Promocode, "rejected code is not recorded")
	assert.False(t, res.Quote.Promo.Valid)
	assert.Equal(t, promo.ReasonInvalidOrInactive, res.Quote.Promo.Reason)
	assert.Equal(t, "250.00", res.Order.Total.StringFixed(2))
}

func TestCheckoutNumberCollisionRetries(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.createErrs = []error{ErrNumberTaken, ErrNumberTaken}
	svc := testService(t, repo, nil, nil)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID: 7,
		Lines:  []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.creates)
	assert.NotEmpty(t, res.Order.Number)
}

func TestCheckoutNumberConflictExhausted(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.createErrs = []error{ErrNumberTaken, ErrNumberTaken, ErrNumberTaken}
	svc := testService(t, repo, nil, nil)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID: 7,
		Lines:  []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	assert.ErrorIs(t, err, ErrNumberConflict)
	assert.Equal(t, maxNumberAttempts, repo.creates)
}

func TestCheckoutFailingSideEffectDoesNotFail(t *testing.T) {
	repo := newFakeOrderRepo()
	email := &failingEmail{}
	d := notify.NewDispatcher(email, nil, nil, nil, nil)
	svc := testService(t, repo, nil, d)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID: 7,
		Email:  "user@example.com",
		Lines:  []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, email.calls)

	var emailResult *notify.Result
	for i := range res.SideEffects {
		if res.SideEffects[i].Target == notify.TargetEmail {
			emailResult = &res.SideEffects[i]
		}
	}
	require.NotNil(t, emailResult)
	assert.False(t, emailResult.OK())
}

func TestCheckoutSavesNewDeliveryAddress(t *testing.T) {
	repo := newFakeOrderRepo()
	addrs := &fakeAddressRepo{}
	svc := testService(t, repo, addrs, nil)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:      7,
		Fulfillment: FulfillmentDelivery,
		AddressText: "Abay 10",
		Lines:       []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, addrs.creates)
	assert.Equal(t, int64(7), addrs.saved["Abay 10"].UserID)

	// Same address again is not duplicated.
	_, err = svc.Checkout(context.Background(), CheckoutRequest{
		UserID:      7,
		Fulfillment: FulfillmentDelivery,
		AddressText: "Abay 10",
		Lines:       []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, addrs.creates)
}

func TestCheckoutAddressFailureIsIgnored(t *testing.T) {
	repo := newFakeOrderRepo()
	addrs := &fakeAddressRepo{createErr: errors.New("storage down")}
	svc := testService(t, repo, addrs, nil)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:      7,
		Fulfillment: FulfillmentDelivery,
		AddressText: "Abay 10",
		Lines:       []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, addrs.creates)
}

func TestCheckoutPickupSkipsAddress(t *testing.T) {
	repo := newFakeOrderRepo()
	addrs := &fakeAddressRepo{}
	svc := testService(t, repo, addrs, nil)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:      7,
		Fulfillment: FulfillmentPickup,
		AddressText: "Abay 10",
		Lines:       []pricing.CartLine{{ItemID: 1, Qty: 1}},
	})
	require.NoError(t, err)
	assert.Zero(t, addrs.creates)
}

func TestGetChecksOwnership(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.orders[1] = &Order{ID: 1, UserID: 7, Number: "APT-1"}
	svc := testService(t, repo, nil, nil)

	o, err := svc.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "APT-1", o.Number)

	_, err = svc.Get(context.Background(), 8, 1)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Get(context.Background(), 7, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.orders[1] = &Order{ID: 1, UserID: 7, Status: StatusNew}
	svc := testService(t, repo, nil, nil)

	o, err := svc.UpdateStatus(context.Background(), 1, StatusCooking)
	require.NoError(t, err)
	assert.Equal(t, StatusCooking, o.Status)

	_, err = svc.UpdateStatus(context.Background(), 1, StatusDelivered)
	var inv *InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, StatusCooking, inv.From)
	assert.Equal(t, StatusDelivered, inv.To)

	_, err = svc.UpdateStatus(context.Background(), 1, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 1, StatusCooking)
	require.ErrorAs(t, err, &inv, "terminal order admits no transition")
}

func TestApplyModifications(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.byItem[5] = &Order{ID: 1, UserID: 7, Number: "APT-1", Status: StatusNew}
	svc := testService(t, repo, nil, nil)

	mods := []ItemModification{
		{ModificationTypeID: 10, Action: pricing.ActionRemove},
		{ModificationTypeID: 11, Action: pricing.ActionAdd},
	}
	require.NoError(t, svc.ApplyModifications(context.Background(), 7, 5, mods))
	assert.Equal(t, mods, repo.replaced[5])

	// Replace semantics: an empty set clears them.
	require.NoError(t, svc.ApplyModifications(context.Background(), 7, 5, nil))
	assert.Empty(t, repo.replaced[5])
}

func TestApplyModificationsRejections(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.byItem[5] = &Order{ID: 1, UserID: 7, Number: "APT-1", Status: StatusDelivered}
	repo.byItem[6] = &Order{ID: 2, UserID: 7, Number: "APT-2", Status: StatusNew}
	svc := testService(t, repo, nil, nil)

	t.Run("terminal order", func(t *testing.T) {
		err := svc.ApplyModifications(context.Background(), 7, 5, nil)
		var completed *CompletedOrderError
		require.ErrorAs(t, err, &completed)
		assert.Equal(t, StatusDelivered, completed.Status)
	})
	t.Run("foreign order", func(t *testing.T) {
		err := svc.ApplyModifications(context.Background(), 8, 6, nil)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})
	t.Run("missing item", func(t *testing.T) {
		err := svc.ApplyModifications(context.Background(), 7, 99, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("inactive type", func(t *testing.T) {
		err := svc.ApplyModifications(context.Background(), 7, 6, []ItemModification{
			{ModificationTypeID: 12, Action: pricing.ActionAdd},
		})
		var unavailable *pricing.ModificationUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, int64(12), unavailable.TypeID)
	})
	t.Run("bad action", func(t *testing.T) {
		err := svc.ApplyModifications(context.Background(), 7, 6, []ItemModification{
			{ModificationTypeID: 10, Action: "toggle"},
		})
		var bad *pricing.InvalidActionError
		require.ErrorAs(t, err, &bad)
	})
}
