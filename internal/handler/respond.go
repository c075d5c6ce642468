package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/appetit/checkout/internal/domain/hours"
	"github.com/appetit/checkout/internal/domain/money"
	"github.com/appetit/checkout/internal/domain/order"
	"github.com/appetit/checkout/internal/domain/pricing"
	"github.com/appetit/checkout/internal/domain/promo"
)

// writeJSON writes an encoded body with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money amounts are emitted as fixed two-decimal JSON numbers.
func encodeMoney(e *jx.Encoder, m money.Money) {
	e.Raw([]byte(m.StringFixed(2)))
}

func encodePromoResult(e *jx.Encoder, r promo.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(r.Valid) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, r.Discount) })
		if !r.Valid {
			e.Field("reason", func(e *jx.Encoder) { e.Str(string(r.Reason)) })
		}
	})
}

func encodeQuote(e *jx.Encoder, q *pricing.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, q.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, q.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, q.Total) })
		e.Field("promo", func(e *jx.Encoder) { encodePromoResult(e, q.Promo) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range q.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("item_id", func(e *jx.Encoder) { e.Int64(l.ItemID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
						e.Field("qty", func(e *jx.Encoder) { e.Int(l.Qty) })
						e.Field("unit_price", func(e *jx.Encoder) { encodeMoney(e, l.UnitPrice) })
						e.Field("line_total", func(e *jx.Encoder) { encodeMoney(e, l.LineTotal) })
					})
				}
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("number", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("fulfillment", func(e *jx.Encoder) { e.Str(string(o.Fulfillment)) })
		if o.AddressText != "" {
			e.Field("address", func(e *jx.Encoder) { e.Str(o.AddressText) })
		}
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		if o.Promocode != "" {
			e.Field("promocode", func(e *jx.Encoder) { e.Str(o.Promocode) })
		}
		e.Field("paid", func(e *jx.Encoder) { e.Bool(o.Paid) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMeth) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					encodeOrderItem(e, &o.Items[i])
				}
			})
		})
	})
}

func encodeOrderItem(e *jx.Encoder, it *order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("item_id", func(e *jx.Encoder) { e.Int64(it.ItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.NameSnapshot) })
		e.Field("qty", func(e *jx.Encoder) { e.Int(it.Qty) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.PriceAtMoment) })
		e.Field("modifications", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, m := range it.Modifications {
					e.Obj(func(e *jx.Encoder) {
						e.Field("type_id", func(e *jx.Encoder) { e.Int64(m.ModificationTypeID) })
						e.Field("action", func(e *jx.Encoder) { e.Str(m.Action) })
					})
				}
			})
		})
	})
}

func encodeHoursStatus(e *jx.Encoder, st hours.Status) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("open", func(e *jx.Encoder) { e.Bool(st.Open) })
		if !st.Open {
			e.Field("reason", func(e *jx.Encoder) { e.Str(string(st.Reason)) })
			if st.NextOpen != nil {
				e.Field("next_open_time", func(e *jx.Encoder) {
					e.Str(st.NextOpen.Format(time.RFC3339))
				})
			}
		}
	})
}

func encodeWeek(e *jx.Encoder, week [7]hours.Day) {
	names := [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	e.Obj(func(e *jx.Encoder) {
		for i, d := range week {
			e.Field(names[i], func(e *jx.Encoder) { encodeDay(e, d) })
		}
	})
}

func encodeDay(e *jx.Encoder, d hours.Day) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("closed", func(e *jx.Encoder) { e.Bool(d.Closed) })
		if d.Open != nil {
			e.Field("open", func(e *jx.Encoder) { e.Str(d.Open.String()) })
		}
		if d.Close != nil {
			e.Field("close", func(e *jx.Encoder) { e.Str(d.Close.String()) })
		}
	})
}
