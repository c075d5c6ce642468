package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// Dispatcher fans a committed order out to all notification targets
// concurrently. Targets fail independently: a dead email provider never
// blocks push delivery, and no failure propagates to the caller beyond
// its entry in the returned results.
type Dispatcher struct {
	email     EmailSender
	push      PushSender
	analytics AnalyticsSender
	devices   DeviceTokens
	platforms []string
}

// NewDispatcher creates a Dispatcher. Any sender may be nil; nil senders
// report a skipped result for their target.
func NewDispatcher(
	email EmailSender,
	push PushSender,
	analytics AnalyticsSender,
	devices DeviceTokens,
	platforms []string,
) *Dispatcher {
	return &Dispatcher{
		email:     email,
		push:      push,
		analytics: analytics,
		devices:   devices,
		platforms: platforms,
	}
}

// OrderCreated dispatches all targets for a freshly committed order and
// returns one Result per dispatch. It never returns an error: by the time
// it runs, the order is durable and the response is already decided.
func (d *Dispatcher) OrderCreated(ctx context.Context, o OrderSummary) []Result {
	var (
		mu      sync.Mutex
		results []Result
	)
	record := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	// Goroutines always return nil: a target's failure is a Result,
	// never a group error that would cancel its siblings.
	var g errgroup.Group

	g.Go(func() error {
		record(d.sendEmail(ctx, o))
		return nil
	})
	g.Go(func() error {
		for _, r := range d.sendPush(ctx, o) {
			record(r)
		}
		return nil
	})
	for _, platform := range d.platforms {
		g.Go(func() error {
			record(d.sendAnalytics(ctx, platform, o))
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (d *Dispatcher) sendEmail(ctx context.Context, o OrderSummary) Result {
	r := Result{Target: TargetEmail}
	if d.email == nil || o.Email == "" {
		r.Skipped = true
		return r
	}
	if err := d.email.SendOrderCreated(ctx, o.Email, o); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			r.Skipped = true
			return r
		}
		r.Err = err
	}
	return r
}

func (d *Dispatcher) sendPush(ctx context.Context, o OrderSummary) []Result {
	if d.push == nil || d.devices == nil {
		return []Result{{Target: TargetPush, Skipped: true}}
	}

	tokens, err := d.devices.TokensByUser(ctx, o.UserID)
	if err != nil {
		return []Result{{Target: TargetPush, Err: errors.Wrap(err, "list devices")}}
	}
	if len(tokens) == 0 {
		return []Result{{Target: TargetPush, Skipped: true}}
	}

	title := "Order accepted"
	body := fmt.Sprintf("#%s for %s", o.Number, o.Total.StringFixed(2))

	results := make([]Result, 0, len(tokens))
	for _, token := range tokens {
		r := Result{Target: TargetPush, Detail: token}
		if err := d.push.Send(ctx, token, title, body); err != nil {
			if errors.Is(err, ErrNotConfigured) {
				r.Skipped = true
				r.Err = nil
			} else {
				r.Err = err
			}
		}
		results = append(results, r)
	}
	return results
}

func (d *Dispatcher) sendAnalytics(ctx context.Context, platform string, o OrderSummary) Result {
	r := Result{Target: TargetAnalytics, Detail: platform}
	if d.analytics == nil {
		r.Skipped = true
		return r
	}
	if err := d.analytics.SendPurchase(ctx, platform, o.GAClientID, o); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			r.Skipped = true
			return r
		}
		r.Err = err
	}
	return r
}
