package notify

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const ga4Endpoint = "https://www.google-analytics.com/mp/collect"

// GA4Sender reports purchase events through the GA4 Measurement Protocol.
// Each platform (web, android, ios) has its own measurement stream.
type GA4Sender struct {
	apiSecret string
	streams   map[string]string // platform -> measurement ID
	endpoint  string
	client    *http.Client
}

// NewGA4Sender creates a GA4Sender. Platforms without a configured stream
// report ErrNotConfigured when dispatched to.
func NewGA4Sender(apiSecret string, streams map[string]string) *GA4Sender {
	return &GA4Sender{
		apiSecret: apiSecret,
		streams:   streams,
		endpoint:  ga4Endpoint,
		client:    http.DefaultClient,
	}
}

// SendPurchase fires one purchase event on the platform's stream.
func (s *GA4Sender) SendPurchase(ctx context.Context, platform, clientID string, o OrderSummary) error {
	measurementID := s.streams[platform]
	if s.apiSecret == "" || measurementID == "" {
		return ErrNotConfigured
	}
	if clientID == "" {
		// No GA client to attribute the purchase to; nothing to report.
		return nil
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("client_id", func(e *jx.Encoder) { e.Str(clientID) })
		e.Field("events", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("name", func(e *jx.Encoder) { e.Str("purchase") })
					e.Field("params", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("transaction_id", func(e *jx.Encoder) { e.Str(o.Number) })
							e.Field("value", func(e *jx.Encoder) { e.Raw([]byte(o.Total.StringFixed(2))) })
							e.Field("currency", func(e *jx.Encoder) { e.Str("KZT") })
						})
					})
				})
			})
		})
	})

	q := url.Values{}
	q.Set("measurement_id", measurementID)
	q.Set("api_secret", s.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoint+"?"+q.Encode(), bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send event")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return errors.Errorf("ga4: unexpected status %d", resp.StatusCode)
	}
	return nil
}
