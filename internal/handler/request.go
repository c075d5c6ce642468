package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/appetit/checkout/internal/domain/hours"
	"github.com/appetit/checkout/internal/domain/order"
	"github.com/appetit/checkout/internal/domain/pricing"
)

// maxBodySize caps request bodies at 1 MiB.
const maxBodySize = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

type checkoutBody struct {
	Email       string
	Fulfillment string
	Address     string
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

func decodeCheckout(data []byte) (*checkoutBody, error) {
	var b checkoutBody
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			b.Email, err = d.Str()
		case "fulfillment":
			b.Fulfillment, err = d.Str()
		case "address":
			b.Address, err = d.Str()
		case "lat":
			b.Lat, err = decodeOptFloat(d)
		case "lng":
			b.Lng, err = decodeOptFloat(d)
		case "items":
			b.Lines, err = decodeCartLines(d)
		case "promocode":
			b.Promocode, err = d.Str()
		case "payment_method":
			b.PaymentMeth, err = d.Str()
		case "utm_source":
			b.UTMSource, err = d.Str()
		case "utm_medium":
			b.UTMMedium, err = d.Str()
		case "utm_campaign":
			b.UTMCampaign, err = d.Str()
		case "ga_client_id":
			b.GAClientID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, err
	}
	return &b, nil
}

func decodeOptFloat(d *jx.Decoder) (*float64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Float64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeCartLines(d *jx.Decoder) ([]pricing.CartLine, error) {
	var lines []pricing.CartLine
	err := d.Arr(func(d *jx.Decoder) error {
		var l pricing.CartLine
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "item_id":
				l.ItemID, err = d.Int64()
			case "qty":
				l.Qty, err = d.Int()
			case "modifications":
				l.Modifications, err = decodeModifications(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func decodeModifications(d *jx.Decoder) ([]pricing.Modification, error) {
	var mods []pricing.Modification
	err := d.Arr(func(d *jx.Decoder) error {
		var m pricing.Modification
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "type_id":
				m.TypeID, err = d.Int64()
			case "action":
				m.Action, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		mods = append(mods, m)
		return nil
	})
	return mods, err
}

type promoValidateBody struct {
	Code  string
	Lines []pricing.CartLine
}

func decodePromoValidate(data []byte) (*promoValidateBody, error) {
	var b promoValidateBody
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			b.Code, err = d.Str()
		case "items":
			b.Lines, err = decodeCartLines(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, err
	}
	return &b, nil
}

func decodeStatusUpdate(data []byte) (order.Status, error) {
	var raw string
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			raw, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return "", err
	}
	return order.ParseStatus(raw)
}

func decodeItemModifications(data []byte) ([]order.ItemModification, error) {
	var mods []order.ItemModification
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "modifications":
			return d.Arr(func(d *jx.Decoder) error {
				var m order.ItemModification
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "type_id":
						m.ModificationTypeID, err = d.Int64()
					case "action":
						m.Action, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				mods = append(mods, m)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return mods, err
}

// decodeDay parses a weekday configuration like {"open": "09:00",
// "close": "22:00"} or {"closed": true}.
func decodeDay(data []byte) (hours.Day, error) {
	var (
		day       hours.Day
		openRaw   string
		closeRaw  string
		hasClocks bool
	)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "closed":
			day.Closed, err = d.Bool()
		case "open":
			openRaw, err = d.Str()
			hasClocks = true
		case "close":
			closeRaw, err = d.Str()
			hasClocks = true
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return hours.Day{}, err
	}

	if day.Closed || !hasClocks {
		return day, nil
	}

	open, err := hours.ParseClock(openRaw)
	if err != nil {
		return hours.Day{}, err
	}
	clos, err := hours.ParseClock(closeRaw)
	if err != nil {
		return hours.Day{}, err
	}
	day.Open, day.Close = &open, &clos
	return day, nil
}
