package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/appetit/checkout/internal/domain/order"
	"github.com/appetit/checkout/internal/domain/pricing"
)

// writeError emits the uniform error envelope: {"error": {"code": ...,
// "message": ..., ...extras}}.
func writeError(w http.ResponseWriter, status int, code, message string, extras func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(code) })
				e.Field("message", func(e *jx.Encoder) { e.Str(message) })
				if extras != nil {
					extras(e)
				}
			})
		})
	})
	writeJSON(w, status, &e)
}

// writeDomainError maps a domain error to its HTTP shape. Unrecognized
// errors become an opaque 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		closed       *order.ClosedError
		completed    *order.CompletedOrderError
		invalidTrans *order.InvalidTransitionError
		itemUnavail  *pricing.ItemUnavailableError
		badQty       *pricing.InvalidQuantityError
		modUnavail   *pricing.ModificationUnavailableError
		badAction    *pricing.InvalidActionError
	)

	switch {
	case errors.Is(err, pricing.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", "cart must contain at least one item", nil)

	case errors.As(err, &badQty):
		writeError(w, http.StatusUnprocessableEntity, "invalid_quantity", badQty.Error(), nil)
	case errors.As(err, &itemUnavail):
		writeError(w, http.StatusUnprocessableEntity, "item_unavailable", itemUnavail.Error(), nil)
	case errors.As(err, &modUnavail):
		writeError(w, http.StatusUnprocessableEntity, "modification_unavailable", modUnavail.Error(), nil)
	case errors.As(err, &badAction):
		writeError(w, http.StatusUnprocessableEntity, "invalid_action", badAction.Error(), nil)

	case errors.As(err, &closed):
		writeError(w, http.StatusConflict, "closed", closed.Error(), func(e *jx.Encoder) {
			e.Field("reason", func(e *jx.Encoder) { e.Str(string(closed.Reason)) })
			if closed.NextOpen != nil {
				e.Field("next_open_time", func(e *jx.Encoder) {
					e.Str(closed.NextOpen.Format(time.RFC3339))
				})
			}
		})
	case errors.Is(err, order.ErrNumberConflict):
		writeError(w, http.StatusConflict, "number_conflict", "could not allocate an order number, retry the request", nil)
	case errors.As(err, &completed):
		writeError(w, http.StatusConflict, "order_completed", completed.Error(), nil)
	case errors.As(err, &invalidTrans):
		writeError(w, http.StatusConflict, "invalid_transition", invalidTrans.Error(), nil)

	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "order not found", nil)
	case errors.Is(err, order.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "order belongs to another user", nil)

	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
