package notify

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmail struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEmail) SendOrderCreated(context.Context, string, OrderSummary) error {
	f.calls.Add(1)
	return f.err
}

type fakePush struct {
	err    error
	tokens []string
}

func (f *fakePush) Send(_ context.Context, token, _, _ string) error {
	f.tokens = append(f.tokens, token)
	return f.err
}

type fakeAnalytics struct {
	err       error
	platforms []string
}

func (f *fakeAnalytics) SendPurchase(_ context.Context, platform, _ string, _ OrderSummary) error {
	f.platforms = append(f.platforms, platform)
	return f.err
}

type fakeDevices struct {
	tokens []string
	err    error
}

func (f *fakeDevices) TokensByUser(context.Context, int64) ([]string, error) {
	return f.tokens, f.err
}

func summary() OrderSummary {
	return OrderSummary{
		Number:     "APT-250616120000042137",
		Total:      decimal.RequireFromString("900.00"),
		UserID:     7,
		Email:      "user@example.com",
		GAClientID: "GA1.2.3.4",
	}
}

func byTarget(results []Result, target Target) []Result {
	var out []Result
	for _, r := range results {
		if r.Target == target {
			out = append(out, r)
		}
	}
	return out
}

func TestOrderCreated_AllTargetsSucceed(t *testing.T) {
	email := &fakeEmail{}
	push := &fakePush{}
	analytics := &fakeAnalytics{}
	d := NewDispatcher(email, push, analytics, &fakeDevices{tokens: []string{"tok-1", "tok-2"}}, []string{"web", "android"})

	results := d.OrderCreated(context.Background(), summary())

	for _, r := range results {
		assert.True(t, r.OK(), "target %s/%s failed: %v", r.Target, r.Detail, r.Err)
	}
	assert.Len(t, byTarget(results, TargetEmail), 1)
	assert.Len(t, byTarget(results, TargetPush), 2)
	assert.Len(t, byTarget(results, TargetAnalytics), 2)
}

func TestOrderCreated_OneFailureDoesNotSkipOthers(t *testing.T) {
	email := &fakeEmail{err: errors.New("smtp exploded")}
	push := &fakePush{}
	analytics := &fakeAnalytics{}
	d := NewDispatcher(email, push, analytics, &fakeDevices{tokens: []string{"tok-1"}}, []string{"web"})

	results := d.OrderCreated(context.Background(), summary())

	emailResults := byTarget(results, TargetEmail)
	require.Len(t, emailResults, 1)
	assert.False(t, emailResults[0].OK())

	// The failing email target must not prevent push or analytics.
	assert.Equal(t, []string{"tok-1"}, push.tokens)
	assert.Equal(t, []string{"web"}, analytics.platforms)
	for _, r := range byTarget(results, TargetPush) {
		assert.True(t, r.OK())
	}
	for _, r := range byTarget(results, TargetAnalytics) {
		assert.True(t, r.OK())
	}
}

func TestOrderCreated_NotConfiguredIsSkipNotFailure(t *testing.T) {
	email := &fakeEmail{err: ErrNotConfigured}
	push := &fakePush{err: ErrNotConfigured}
	analytics := &fakeAnalytics{err: ErrNotConfigured}
	d := NewDispatcher(email, push, analytics, &fakeDevices{tokens: []string{"tok-1"}}, []string{"web"})

	results := d.OrderCreated(context.Background(), summary())

	for _, r := range results {
		assert.True(t, r.OK(), "target %s: %v", r.Target, r.Err)
		assert.True(t, r.Skipped, "target %s should be skipped", r.Target)
	}
}

func TestOrderCreated_NoEmailAddressSkipsEmail(t *testing.T) {
	email := &fakeEmail{}
	d := NewDispatcher(email, nil, nil, nil, nil)

	sum := summary()
	sum.Email = ""
	results := d.OrderCreated(context.Background(), sum)

	emailResults := byTarget(results, TargetEmail)
	require.Len(t, emailResults, 1)
	assert.True(t, emailResults[0].Skipped)
	assert.Equal(t, int32(0), email.calls.Load())
}

func TestOrderCreated_DeviceLookupFailureIsIsolated(t *testing.T) {
	email := &fakeEmail{}
	push := &fakePush{}
	d := NewDispatcher(email, push, nil, &fakeDevices{err: errors.New("db down")}, nil)

	results := d.OrderCreated(context.Background(), summary())

	pushResults := byTarget(results, TargetPush)
	require.Len(t, pushResults, 1)
	assert.False(t, pushResults[0].OK())

	assert.Equal(t, int32(1), email.calls.Load(), "email still dispatched")
}

func TestOrderCreated_NoDevicesSkipsPush(t *testing.T) {
	d := NewDispatcher(nil, &fakePush{}, nil, &fakeDevices{}, nil)

	results := d.OrderCreated(context.Background(), summary())

	pushResults := byTarget(results, TargetPush)
	require.Len(t, pushResults, 1)
	assert.True(t, pushResults[0].Skipped)
}
