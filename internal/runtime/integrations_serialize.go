package runtime

import (
	"context"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/event"
)

// SerializeMiddleware bounds every application-supplied value on the event
// before the sanitizer and the transport see it. Hint.Payload entries are
// merged into the extra data first, without replacing existing keys.
func SerializeMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "serialize",
		Priority: PrioritySerialize,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				for k, v := range hint.Payload {
					if _, ok := evt.Extra[k]; !ok {
						evt.SetExtra(k, v)
					}
				}
				c.boundEvent(evt)
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

// boundEvent runs user, extra, contexts, tags, fingerprint, transaction and
// breadcrumb data through the client serializer. Values are depth limited,
// cycle cut and clipped. Serializer output passes through unchanged, so
// bounding twice is harmless.
func (c *Client) boundEvent(evt *event.Event) {
	evt.User = c.boundMap(evt.User)
	evt.Extra = c.boundMap(evt.Extra)
	for name, values := range evt.Contexts {
		evt.Contexts[name] = c.boundMap(values)
	}
	if len(evt.Tags) > 0 {
		tags := make(map[string]string, len(evt.Tags))
		for k, v := range evt.Tags {
			tags[c.serializer.SerializeString(k)] = c.serializer.SerializeString(v)
		}
		evt.Tags = tags
	}
	if len(evt.Fingerprint) > 0 {
		fingerprint := make([]string, len(evt.Fingerprint))
		for i, part := range evt.Fingerprint {
			fingerprint[i] = c.serializer.SerializeString(part)
		}
		evt.Fingerprint = fingerprint
	}
	evt.Transaction = c.serializer.SerializeString(evt.Transaction)
	for i, b := range evt.Breadcrumbs {
		evt.Breadcrumbs[i] = c.boundBreadcrumb(b)
	}
}

// boundMap serializes each value of m from its own root, so every entry gets
// the full depth allowance.
func (c *Client) boundMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[c.serializer.SerializeString(k)] = c.serializer.Serialize(v)
	}
	return out
}

func (c *Client) boundBreadcrumb(b *breadcrumb.Breadcrumb) *breadcrumb.Breadcrumb {
	if b == nil {
		return nil
	}
	if msg, ok := b.Message(); ok {
		b = b.WithMessage(c.serializer.SerializeString(msg))
	}
	for k, v := range b.Metadata() {
		bounded := c.serializer.Serialize(v)
		if key := c.serializer.SerializeString(k); key != k {
			b = b.WithoutMetadata(k).WithMetadata(key, bounded)
			continue
		}
		b = b.WithMetadata(k, bounded)
	}
	return b
}
