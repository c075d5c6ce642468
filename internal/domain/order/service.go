package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appetit/checkout/internal/domain/address"
	"github.com/appetit/checkout/internal/domain/catalog"
	"github.com/appetit/checkout/internal/domain/hours"
	"github.com/appetit/checkout/internal/domain/pricing"
	"github.com/appetit/checkout/internal/notify"
)

// maxNumberAttempts bounds the retry loop on order-number collisions.
const maxNumberAttempts = 3

// ClosedError rejects a checkout submitted outside business hours.
// Nothing is written before this check passes.
type ClosedError struct {
	Reason   hours.Reason
	NextOpen *time.Time
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("ordering is closed: %s", e.Reason)
}

// CompletedOrderError rejects mutations of a terminal order.
type CompletedOrderError struct {
	Number string
	Status Status
}

func (e *CompletedOrderError) Error() string {
	return fmt.Sprintf("order %s is completed (%s) and cannot be modified", e.Number, e.Status)
}

// InvalidTransitionError rejects a status change the lifecycle forbids.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// CheckoutRequest is the input to Checkout.
type CheckoutRequest struct {
	UserID      int64
	Email       string
	Fulfillment Fulfillment
	AddressText string
	Lat         *float64
	Lng         *float64
	Lines       []pricing.CartLine
	Promocode   string
	PaymentMeth string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	GAClientID  string
}

// CheckoutResult is the outcome of a successful checkout. SideEffects
// carries the per-target dispatch report; every entry is informational,
// none of them affected the persisted order.
type CheckoutResult struct {
	Order       *Order
	Quote       *pricing.Quote
	SideEffects []notify.Result
}

// Service is the checkout assembler.
type Service struct {
	schedule   *hours.Schedule
	pricing    *pricing.Engine
	catalog    catalog.Repository
	orders     Repository
	addresses  address.Repository
	dispatcher *notify.Dispatcher
	lg         *zap.Logger

	numberPrefix string
	now          func() time.Time
	intn         func(int) int
}

// NewService creates a checkout Service. addresses and dispatcher may be
// nil; the corresponding post-commit steps are then skipped.
func NewService(
	schedule *hours.Schedule,
	engine *pricing.Engine,
	cat catalog.Repository,
	orders Repository,
	addresses address.Repository,
	dispatcher *notify.Dispatcher,
	numberPrefix string,
	lg *zap.Logger,
) *Service {
	return &Service{
		schedule:     schedule,
		pricing:      engine,
		catalog:      cat,
		orders:       orders,
		addresses:    addresses,
		dispatcher:   dispatcher,
		lg:           lg,
		numberPrefix: numberPrefix,
		now:          time.Now,
		intn:         defaultIntN,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Checkout runs the full pipeline: validate, gate on business hours,
// price, persist atomically, then fire post-commit side effects. Either
// it returns a fully-persisted order or it fails with one enumerable
// reason and no visible partial state.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.Lines) == 0 {
		return nil, pricing.ErrEmptyCart
	}

	now := s.now()
	if st := s.schedule.StatusAt(now); !st.Open {
		return nil, &ClosedError{Reason: st.Reason, NextOpen: st.NextOpen}
	}

	quote, err := s.pricing.Price(ctx, req.Lines, req.Promocode)
	if err != nil {
		return nil, err
	}

	paymentMeth := req.PaymentMeth
	if paymentMeth == "" {
		paymentMeth = "cod"
	}

	// Record the code only when it actually granted the discount.
	promocode := ""
	if quote.Promo.Valid && req.Promocode != "" {
		promocode = req.Promocode
	}

	o := &Order{
		UserID:      req.UserID,
		Fulfillment: req.Fulfillment,
		AddressText: req.AddressText,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Status:      StatusNew,
		Subtotal:    quote.Subtotal,
		Discount:    quote.Discount,
		Total:       quote.Total,
		Promocode:   promocode,
		PaymentMeth: paymentMeth,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		GAClientID:  req.GAClientID,
		CreatedAt:   now,
		Items:       make([]Item, len(quote.Lines)),
	}
	for i, line := range quote.Lines {
		mods := make([]ItemModification, len(line.Modifications))
		for j, m := range line.Modifications {
			mods[j] = ItemModification{ModificationTypeID: m.TypeID, Action: m.Action}
		}
		o.Items[i] = Item{
			ItemID:        line.ItemID,
			NameSnapshot:  line.Name,
			Qty:           line.Qty,
			PriceAtMoment: line.UnitPrice,
			Modifications: mods,
		}
	}

	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}

	result := &CheckoutResult{Order: o, Quote: quote}

	// From here on the order is durable: nothing below may fail the call.
	s.saveAddress(ctx, req)
	result.SideEffects = s.dispatch(ctx, o, req.Email)

	return result, nil
}

// persist inserts the order with a freshly generated number, retrying a
// bounded number of times when the number collides with an existing row.
func (s *Service) persist(ctx context.Context, o *Order) error {
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.Number = newNumber(s.numberPrefix, s.now(), s.intn)
		err = s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNumberTaken) {
			return errors.Wrap(err, "create order")
		}
		s.lg.Warn("order number collision, retrying",
			zap.String("number", o.Number),
			zap.Int("attempt", attempt+1),
		)
	}
	return ErrNumberConflict
}

// saveAddress opportunistically saves a delivery address the user has not
// saved before. Failures are logged and ignored.
func (s *Service) saveAddress(ctx context.Context, req CheckoutRequest) {
	if s.addresses == nil || req.Fulfillment != FulfillmentDelivery || req.AddressText == "" {
		return
	}

	_, err := s.addresses.FindByUserAndText(ctx, req.UserID, req.AddressText)
	if err == nil {
		return // identical address already saved
	}
	if !errors.Is(err, address.ErrNotFound) {
		s.lg.Warn("saved-address lookup failed", zap.Error(err))
		return
	}

	a := &address.Address{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Text:      req.AddressText,
		Lat:       req.Lat,
		Lng:       req.Lng,
		CreatedAt: s.now(),
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		s.lg.Warn("saved-address create failed", zap.Error(err))
	}
}

// dispatch fans out post-commit notifications and logs every failed target.
func (s *Service) dispatch(ctx context.Context, o *Order, email string) []notify.Result {
	if s.dispatcher == nil {
		return nil
	}

	results := s.dispatcher.OrderCreated(ctx, notify.OrderSummary{
		Number:     o.Number,
		Total:      o.Total,
		UserID:     o.UserID,
		Email:      email,
		GAClientID: o.GAClientID,
	})
	for _, r := range results {
		if !r.OK() {
			s.lg.Warn("side effect failed",
				zap.String("order", o.Number),
				zap.String("target", string(r.Target)),
				zap.String("detail", r.Detail),
				zap.Error(r.Err),
			)
		}
	}
	return results
}

// Get returns an order with items and modifications materialized, checking
// ownership.
func (s *Service) Get(ctx context.Context, userID, orderID int64) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrAccessDenied
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus advances the order lifecycle. Transitions outside the
// state machine are rejected without writes.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, target Status) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(target) {
		return nil, &InvalidTransitionError{From: o.Status, To: target}
	}
	if err := s.orders.UpdateStatus(ctx, orderID, target); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = target
	return o, nil
}

// ApplyModifications replaces the modification set of one order item.
// The order must belong to the user and must not be in a terminal state;
// every referenced modification type must resolve to an active one.
func (s *Service) ApplyModifications(ctx context.Context, userID, orderItemID int64, mods []ItemModification) error {
	o, err := s.orders.GetByItemID(ctx, orderItemID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrAccessDenied
	}
	if o.Status.Terminal() {
		return &CompletedOrderError{Number: o.Number, Status: o.Status}
	}

	if len(mods) > 0 {
		ids := make([]int64, len(mods))
		for i, m := range mods {
			if m.Action != pricing.ActionAdd && m.Action != pricing.ActionRemove {
				return &pricing.InvalidActionError{Action: m.Action}
			}
			ids[i] = m.ModificationTypeID
		}
		types, err := s.catalog.ModificationTypesByIDs(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "resolve modification types")
		}
		for _, id := range ids {
			mt, ok := types[id]
			if !ok || !mt.Active {
				return &pricing.ModificationUnavailableError{TypeID: id}
			}
		}
	}

	return s.orders.ReplaceItemModifications(ctx, orderItemID, mods)
}
