// Package handler exposes the checkout API over HTTP. Bodies are decoded
// and encoded with jx; routing uses net/http method patterns.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/appetit/checkout/internal/domain/hours"
	"github.com/appetit/checkout/internal/domain/order"
	"github.com/appetit/checkout/internal/domain/pricing"
)

// Handler implements the HTTP API, delegating business logic to the order
// service and pricing engine.
type Handler struct {
	orders   *order.Service
	engine   *pricing.Engine
	schedule *hours.Schedule
	security *SecurityHandler
	lg       *zap.Logger
	now      func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	engine *pricing.Engine,
	schedule *hours.Schedule,
	security *SecurityHandler,
	lg *zap.Logger,
) *Handler {
	return &Handler{
		orders:   orders,
		engine:   engine,
		schedule: schedule,
		security: security,
		lg:       lg,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Register mounts all routes on the mux. Admin routes are wrapped with API
// key authentication.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /cart/price", h.priceCart)
	mux.HandleFunc("POST /promo/validate", h.validatePromo)
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("POST /order-items/{id}/modifications", h.applyModifications)
	mux.HandleFunc("GET /hours", h.getHours)

	mux.Handle("PUT /admin/orders/{id}/status", h.security.Protect(http.HandlerFunc(h.updateStatus)))
	mux.Handle("PUT /admin/hours/{weekday}", h.security.Protect(http.HandlerFunc(h.replaceHours)))
}

// userID extracts the authenticated user from the X-User-ID header. Zero
// means unauthenticated.
func userID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id := userID(r)
	if id <= 0 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid X-User-ID", nil)
		return 0, false
	}
	return id, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) priceCart(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read body", nil)
		return
	}
	body, err := decodeCheckout(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON", nil)
		return
	}

	quote, err := h.engine.Price(r.Context(), body.Lines, body.Promocode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeQuote(&e, quote)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) validatePromo(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read body", nil)
		return
	}
	body, err := decodePromoValidate(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON", nil)
		return
	}

	quote, err := h.engine.Price(r.Context(), body.Lines, body.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodePromoResult(&e, quote.Promo)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read body", nil)
		return
	}
	body, err := decodeCheckout(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON", nil)
		return
	}

	fulfillment := order.Fulfillment(body.Fulfillment)
	if fulfillment == "" {
		fulfillment = order.FulfillmentDelivery
	}
	if fulfillment != order.FulfillmentDelivery && fulfillment != order.FulfillmentPickup {
		writeError(w, http.StatusBadRequest, "bad_request", "fulfillment must be delivery or pickup", nil)
		return
	}

	res, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:      uid,
		Email:       body.Email,
		Fulfillment: fulfillment,
		AddressText: body.Address,
		Lat:         body.Lat,
		Lng:         body.Lng,
		Lines:       body.Lines,
		Promocode:   body.Promocode,
		PaymentMeth: body.PaymentMeth,
		UTMSource:   body.UTMSource,
		UTMMedium:   body.UTMMedium,
		UTMCampaign: body.UTMCampaign,
		GAClientID:  body.GAClientID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, res.Order)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid order id", nil)
		return
	}

	o, err := h.orders.Get(r.Context(), uid, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	orders, err := h.orders.ListByUser(r.Context(), uid, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range orders {
					encodeOrder(e, &orders[i])
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) applyModifications(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid order item id", nil)
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read body", nil)
		return
	}
	mods, err := decodeItemModifications(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON", nil)
		return
	}

	if err := h.orders.ApplyModifications(r.Context(), uid, itemID, mods); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getHours(w http.ResponseWriter, r *http.Request) {
	st := h.schedule.StatusAt(h.now())

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { encodeHoursStatus(e, st) })
		e.Field("week", func(e *jx.Encoder) { encodeWeek(e, h.schedule.Week()) })
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid order id", nil)
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read body", nil)
		return
	}
	st, err := decodeStatusUpdate(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown status", nil)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, st)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) replaceHours(w http.ResponseWriter, r *http.Request) {
	weekday, err := strconv.Atoi(r.PathValue("weekday"))
	if err != nil || weekday < 0 || weekday > 6 {
		writeError(w, http.StatusBadRequest, "bad_request", "weekday must be 0 (Monday) to 6 (Sunday)", nil)
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read body", nil)
		return
	}
	day, err := decodeDay(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid day configuration", nil)
		return
	}

	if err := h.schedule.Replace(weekday, day); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	var e jx.Encoder
	encodeDay(&e, day)
	writeJSON(w, http.StatusOK, &e)
}
