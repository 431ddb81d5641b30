package runtime

import (
	"context"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
)

// DropReason explains why a captured event was not delivered.
type DropReason string

const (
	DropSampleRate     DropReason = "sample_rate"
	DropIgnored        DropReason = "ignored"
	DropBeforeSend     DropReason = "before_send"
	DropEventProcessor DropReason = "event_processor"
)

// DropContext describes an intentionally dropped event to hooks.
type DropContext struct {
	EventID string
	Type    event.Type
	Reason  DropReason
	// Stage names the middleware that vetoed the event, when known.
	Stage string
}

// BeforeSendFunc inspects or rewrites an event right before delivery.
// Returning nil drops the event.
type BeforeSendFunc func(ctx context.Context, evt *event.Event, hint *Hint) *event.Event

// BeforeBreadcrumbFunc rewrites a breadcrumb before it is recorded. Returning
// nil discards it.
type BeforeBreadcrumbFunc func(b *breadcrumb.Breadcrumb) *breadcrumb.Breadcrumb

// Hooks defines callbacks around event delivery.
// All hooks are optional - nil hooks are simply not called.
type Hooks struct {
	// BeforeSend applies to plain error and message events.
	BeforeSend            BeforeSendFunc
	BeforeSendTransaction BeforeSendFunc
	BeforeSendCheckIn     BeforeSendFunc
	BeforeSendMetrics     BeforeSendFunc

	BeforeBreadcrumb BeforeBreadcrumbFunc

	// OnDrop is called for every intentional drop.
	OnDrop func(ctx DropContext)

	// OnSendError is called when a transport reports a failed delivery,
	// including deliveries completed asynchronously by a queue.
	OnSendError func(result transport.Result)
}

// Merge combines two Hooks, creating a new Hooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'. A before-send
// chain stops at the first hook that drops the event.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		BeforeSend:            chainBeforeSend(h.BeforeSend, other.BeforeSend),
		BeforeSendTransaction: chainBeforeSend(h.BeforeSendTransaction, other.BeforeSendTransaction),
		BeforeSendCheckIn:     chainBeforeSend(h.BeforeSendCheckIn, other.BeforeSendCheckIn),
		BeforeSendMetrics:     chainBeforeSend(h.BeforeSendMetrics, other.BeforeSendMetrics),
		BeforeBreadcrumb:      chainBeforeBreadcrumb(h.BeforeBreadcrumb, other.BeforeBreadcrumb),
		OnDrop:                chainDropHooks(h.OnDrop, other.OnDrop),
		OnSendError:           chainSendErrorHooks(h.OnSendError, other.OnSendError),
	}
}

// beforeSendFor selects the hook that applies to events of type t.
func (h Hooks) beforeSendFor(t event.Type) BeforeSendFunc {
	switch t {
	case event.TypeTransaction:
		return h.BeforeSendTransaction
	case event.TypeCheckIn:
		return h.BeforeSendCheckIn
	case event.TypeMetrics:
		return h.BeforeSendMetrics
	default:
		return h.BeforeSend
	}
}

func chainBeforeSend(a, b BeforeSendFunc) BeforeSendFunc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, evt *event.Event, hint *Hint) *event.Event {
		evt = a(ctx, evt, hint)
		if evt == nil {
			return nil
		}
		return b(ctx, evt, hint)
	}
}

func chainBeforeBreadcrumb(a, b BeforeBreadcrumbFunc) BeforeBreadcrumbFunc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(crumb *breadcrumb.Breadcrumb) *breadcrumb.Breadcrumb {
		crumb = a(crumb)
		if crumb == nil {
			return nil
		}
		return b(crumb)
	}
}

func chainDropHooks(a, b func(DropContext)) func(DropContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DropContext) {
		a(ctx)
		b(ctx)
	}
}

func chainSendErrorHooks(a, b func(transport.Result)) func(transport.Result) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(res transport.Result) {
		a(res)
		b(res)
	}
}

// LoggingHooks returns pre-built hooks that log drops and delivery failures.
func LoggingHooks(logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}) Hooks {
	return Hooks{
		OnDrop: func(ctx DropContext) {
			logger.Info("Event dropped", map[string]any{
				"event_id":   ctx.EventID,
				"event_type": string(ctx.Type),
				"reason":     string(ctx.Reason),
				"stage":      ctx.Stage,
			})
		},
		OnSendError: func(res transport.Result) {
			logger.Error("Event delivery failed", res.Err, map[string]any{
				"event_id": res.EventID,
				"status":   string(res.Status),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that forward drops and delivery
// failures to counters.
func MetricsHooks(onDrop func(reason DropReason), onSendError func(status transport.Status)) Hooks {
	return Hooks{
		OnDrop: func(ctx DropContext) {
			if onDrop != nil {
				onDrop(ctx.Reason)
			}
		},
		OnSendError: func(res transport.Result) {
			if onSendError != nil {
				onSendError(res.Status)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on delivery
// failures.
func AlertingHooks(alertFunc func(result transport.Result)) Hooks {
	return Hooks{
		OnSendError: alertFunc,
	}
}
