package runtime

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/drblury/faultline/internal/runtime/event"
)

// Rand supplies the uniform draw in [0, 1) used for sampling.
type Rand interface {
	Float64() float64
}

// RandFunc adapts a function to Rand.
type RandFunc func() float64

func (f RandFunc) Float64() float64 { return f() }

func defaultRand() Rand { return RandFunc(rand.Float64) }

// SamplingMiddleware drops events according to the configured sample rate.
// Exactly one draw is made per captured event, and none at rate 0 or 1.
func SamplingMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "sampling",
		Priority: PrioritySampling,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if !c.sampled() {
					markDropped(ctx, DropSampleRate, "sampling")
					return nil, nil
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

func (c *Client) sampled() bool {
	rate := c.Conf.SampleRate
	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	default:
		return c.rand.Float64() < rate
	}
}

// MessageMiddleware renders printf-style messages and bounds their length.
func MessageMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "message",
		Priority: PriorityMessage,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if evt.Message != "" {
					if evt.MessageFormatted == "" && len(evt.MessageParams) > 0 {
						evt.MessageFormatted = fmt.Sprintf(evt.Message, evt.MessageParams...)
					}
					evt.Message = c.serializer.SerializeString(evt.Message)
					if evt.MessageFormatted != "" {
						evt.MessageFormatted = c.serializer.SerializeString(evt.MessageFormatted)
					}
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

// BreadcrumbMiddleware attaches the recorded breadcrumbs unless the event
// already carries its own.
func BreadcrumbMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "breadcrumbs",
		Priority: PriorityBreadcrumbs,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if len(evt.Breadcrumbs) == 0 && !c.recorder.IsEmpty() {
					evt.Breadcrumbs = c.recorder.Fetch()
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}
