package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/severity"
	"github.com/drblury/faultline/transport"
)

func TestHooks_BeforeSendForSelectsByType(t *testing.T) {
	var got []string
	mark := func(name string) BeforeSendFunc {
		return func(_ context.Context, evt *event.Event, _ *Hint) *event.Event {
			got = append(got, name)
			return evt
		}
	}
	hooks := Hooks{
		BeforeSend:            mark("event"),
		BeforeSendTransaction: mark("transaction"),
		BeforeSendCheckIn:     mark("check_in"),
		BeforeSendMetrics:     mark("metrics"),
	}

	events := []*event.Event{
		event.New(),
		event.NewTransaction("GET /"),
		event.NewCheckIn(event.CheckIn{MonitorSlug: "nightly", Status: event.CheckInOK}),
		event.NewMetrics([]event.Metric{{Name: "hits", Type: "c", Value: 1}}),
	}
	for _, evt := range events {
		hook := hooks.beforeSendFor(evt.Type())
		require.NotNil(t, hook)
		hook(context.Background(), evt, nil)
	}

	assert.Equal(t, []string{"event", "transaction", "check_in", "metrics"}, got)
}

func TestHooks_MergeCallsBoth(t *testing.T) {
	var order []string
	a := Hooks{
		OnDrop:      func(DropContext) { order = append(order, "a.drop") },
		OnSendError: func(transport.Result) { order = append(order, "a.send") },
	}
	b := Hooks{
		OnDrop:      func(DropContext) { order = append(order, "b.drop") },
		OnSendError: func(transport.Result) { order = append(order, "b.send") },
	}

	merged := a.Merge(b)
	merged.OnDrop(DropContext{Reason: DropSampleRate})
	merged.OnSendError(transport.Failed("x", errors.New("down")))

	assert.Equal(t, []string{"a.drop", "b.drop", "a.send", "b.send"}, order)
}

func TestHooks_MergeWithNil(t *testing.T) {
	var called bool
	a := Hooks{OnDrop: func(DropContext) { called = true }}

	merged := a.Merge(Hooks{})
	require.NotNil(t, merged.OnDrop)
	merged.OnDrop(DropContext{})
	assert.True(t, called)

	merged = Hooks{}.Merge(a)
	require.NotNil(t, merged.OnDrop)
	assert.Nil(t, merged.OnSendError)
	assert.Nil(t, merged.BeforeSend)
}

func TestHooks_MergeBeforeSendStopsOnDrop(t *testing.T) {
	var secondCalled bool
	a := Hooks{BeforeSend: func(context.Context, *event.Event, *Hint) *event.Event { return nil }}
	b := Hooks{BeforeSend: func(_ context.Context, evt *event.Event, _ *Hint) *event.Event {
		secondCalled = true
		return evt
	}}

	merged := a.Merge(b)
	assert.Nil(t, merged.BeforeSend(context.Background(), event.New(), nil))
	assert.False(t, secondCalled)
}

func TestHooks_MergeBeforeBreadcrumb(t *testing.T) {
	a := Hooks{BeforeBreadcrumb: func(b *breadcrumb.Breadcrumb) *breadcrumb.Breadcrumb {
		return b.WithCategory("first")
	}}
	b := Hooks{BeforeBreadcrumb: func(b *breadcrumb.Breadcrumb) *breadcrumb.Breadcrumb {
		return b.WithMessage(b.Category())
	}}

	crumb, err := breadcrumb.New(severity.Info, breadcrumb.TypeDefault, "origin")
	require.NoError(t, err)

	out := a.Merge(b).BeforeBreadcrumb(crumb)
	require.NotNil(t, out)
	msg, ok := out.Message()
	assert.True(t, ok)
	assert.Equal(t, "first", msg)
}

func TestLoggingHooks(t *testing.T) {
	logger := &mapLogger{}
	hooks := LoggingHooks(logger)

	hooks.OnDrop(DropContext{EventID: "abc", Type: event.TypeEvent, Reason: DropIgnored})
	hooks.OnSendError(transport.Failed("abc", errors.New("down")))

	require.Len(t, logger.infos, 1)
	assert.Equal(t, "Event dropped", logger.infos[0])
	require.Len(t, logger.errors, 1)
	assert.Equal(t, "Event delivery failed", logger.errors[0])
	assert.Equal(t, "ignored", logger.lastFields["reason"])
}

func TestMetricsHooks(t *testing.T) {
	var reasons []DropReason
	var statuses []transport.Status
	hooks := MetricsHooks(
		func(r DropReason) { reasons = append(reasons, r) },
		func(s transport.Status) { statuses = append(statuses, s) },
	)

	hooks.OnDrop(DropContext{Reason: DropBeforeSend})
	hooks.OnSendError(transport.Result{Status: transport.StatusRateLimited})

	assert.Equal(t, []DropReason{DropBeforeSend}, reasons)
	assert.Equal(t, []transport.Status{transport.StatusRateLimited}, statuses)
}

func TestMetricsHooks_NilCallbacks(t *testing.T) {
	hooks := MetricsHooks(nil, nil)
	hooks.OnDrop(DropContext{})
	hooks.OnSendError(transport.Result{})
}

func TestAlertingHooks(t *testing.T) {
	var alerted transport.Result
	hooks := AlertingHooks(func(res transport.Result) { alerted = res })

	assert.Nil(t, hooks.OnDrop)
	hooks.OnSendError(transport.Failed("id", errors.New("boom")))
	assert.Equal(t, "id", alerted.EventID)
}

type mapLogger struct {
	infos      []string
	errors     []string
	lastFields map[string]any
}

func (l *mapLogger) Info(msg string, fields map[string]any) {
	l.infos = append(l.infos, msg)
	l.lastFields = fields
}

func (l *mapLogger) Error(msg string, _ error, fields map[string]any) {
	l.errors = append(l.errors, msg)
}
