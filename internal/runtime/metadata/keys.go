package metadata

import (
	"github.com/drblury/faultline/internal/runtime/event"
)

// Header keys attached to every published event.
const (
	KeyEventID         = "event_id"
	KeyEventType       = "event_type"
	KeyContentType     = "content_type"
	KeyContentEncoding = "content_encoding"
	KeySDK             = "sdk"
	KeyTraceID         = "trace_id"
	KeySpanID          = "span_id"
)

// FromEvent returns the routing headers describing evt. Encoding headers are
// added by the transport that encodes the payload.
func FromEvent(evt *event.Event) Metadata {
	if evt == nil {
		return Metadata{}
	}
	typ := evt.Type()
	if typ == "" {
		typ = event.TypeEvent
	}
	md := New(KeyEventID, evt.ID(), KeyEventType, string(typ))
	if evt.SDK.Name != "" {
		md[KeySDK] = evt.SDK.Name + "/" + evt.SDK.Version
	}
	if trace := evt.Contexts[event.ContextTrace]; trace != nil {
		if id, ok := trace["trace_id"].(string); ok && id != "" {
			md[KeyTraceID] = id
		}
		if id, ok := trace["span_id"].(string); ok && id != "" {
			md[KeySpanID] = id
		}
	}
	return md
}
