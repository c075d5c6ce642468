package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendSender delivers transactional email through the Resend REST API.
type ResendSender struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

// NewResendSender creates a ResendSender. An empty apiKey yields a sender
// that reports ErrNotConfigured instead of attempting delivery.
func NewResendSender(apiKey, fromEmail, fromName string) *ResendSender {
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &ResendSender{
		apiKey:   apiKey,
		from:     from,
		endpoint: resendEndpoint,
		client:   http.DefaultClient,
	}
}

// SendOrderCreated sends the order-confirmation email.
func (s *ResendSender) SendOrderCreated(ctx context.Context, to string, o OrderSummary) error {
	if s.apiKey == "" {
		return ErrNotConfigured
	}

	subject := fmt.Sprintf("Order #%s created", o.Number)
	text := fmt.Sprintf(
		"Your order #%s has been accepted.\nTotal: %s\n",
		o.Number, o.Total.StringFixed(2),
	)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("from", func(e *jx.Encoder) { e.Str(s.from) })
		e.Field("to", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) { e.Str(to) })
		})
		e.Field("subject", func(e *jx.Encoder) { e.Str(subject) })
		e.Field("text", func(e *jx.Encoder) { e.Str(text) })
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send email")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return errors.Errorf("resend: unexpected status %d", resp.StatusCode)
	}
	return nil
}
