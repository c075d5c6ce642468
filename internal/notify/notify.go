// Package notify fires the post-commit side effects of a successful
// checkout: confirmation email, push notifications to the user's devices,
// and purchase analytics events. Every target is best-effort and isolated;
// nothing here can fail the checkout that triggered it.
package notify

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/appetit/checkout/internal/domain/money"
)

// ErrNotConfigured is returned by senders that have no credentials.
// The dispatcher treats it as a successful skip, not a failure.
var ErrNotConfigured = errors.New("sender not configured")

// Target identifies one dispatch destination class.
type Target string

const (
	TargetEmail     Target = "email"
	TargetPush      Target = "push"
	TargetAnalytics Target = "analytics"
)

// Result reports the outcome of one dispatch. Detail disambiguates
// multiple dispatches of the same target (device token, platform).
type Result struct {
	Target  Target
	Detail  string
	Skipped bool
	Err     error
}

// OK reports whether the dispatch succeeded or was skipped cleanly.
func (r Result) OK() bool {
	return r.Err == nil
}

// OrderSummary is the minimal order view the dispatcher needs. Keeping it
// local avoids coupling the notification fan-out to the order domain.
type OrderSummary struct {
	Number     string
	Total      money.Money
	UserID     int64
	Email      string
	GAClientID string
}

// EmailSender delivers the order-confirmation email.
type EmailSender interface {
	SendOrderCreated(ctx context.Context, to string, o OrderSummary) error
}

// PushSender delivers one push notification to one device token.
type PushSender interface {
	Send(ctx context.Context, token, title, body string) error
}

// AnalyticsSender reports a purchase event to one analytics platform.
type AnalyticsSender interface {
	SendPurchase(ctx context.Context, platform, clientID string, o OrderSummary) error
}

// DeviceTokens lists the registered push tokens of a user. Device
// registration itself is outside the checkout core.
type DeviceTokens interface {
	TokensByUser(ctx context.Context, userID int64) ([]string, error)
}
