package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"

	"github.com/drblury/faultline/internal/runtime/event"
)

func TestNewIgnoresDanglingKey(t *testing.T) {
	t.Parallel()

	md := New(KeyEventID, "abc", KeyEventType)
	assert.Equal(t, Metadata{KeyEventID: "abc"}, md)
	assert.Equal(t, "abc", md.EventID())
	assert.Empty(t, md.EventType())
}

func TestCloneNeverNil(t *testing.T) {
	t.Parallel()

	var empty Metadata
	assert.NotNil(t, empty.Clone())

	original := Metadata{"a": "1"}
	clone := original.Clone()
	clone["a"] = "changed"
	assert.Equal(t, "1", original["a"])
}

func TestMergeKeepsExistingOnEmpty(t *testing.T) {
	t.Parallel()

	base := New(KeyContentType, "application/json", KeyContentEncoding, "gzip")
	merged := base.Merge(Metadata{KeyContentEncoding: "", KeyEventType: "check_in"})

	assert.Equal(t, "gzip", merged.ContentEncoding())
	assert.Equal(t, "application/json", merged.ContentType())
	assert.Equal(t, "check_in", merged.EventType())
	assert.NotContains(t, base, KeyEventType)
}

func TestWatermillConversionCopies(t *testing.T) {
	t.Parallel()

	md := Metadata{KeyEventType: "event"}
	wm := ToWatermill(md)
	wm.Set(KeyEventType, "mutated")
	assert.Equal(t, "event", md.EventType())

	back := FromWatermill(message.Metadata{KeyContentType: "application/msgpack"})
	assert.Equal(t, "application/msgpack", back.ContentType())
	assert.Empty(t, FromWatermill(nil))
}

func TestFromEvent(t *testing.T) {
	t.Parallel()

	evt := event.New()
	evt.Contexts = map[string]map[string]any{
		event.ContextTrace: {"trace_id": "4bf92f3577b34da6a3ce929d0e0e4736", "span_id": "00f067aa0ba902b7"},
	}

	md := FromEvent(evt)
	assert.Equal(t, evt.ID(), md.EventID())
	assert.Equal(t, "event", md.EventType())
	assert.Equal(t, event.SDKName+"/"+event.SDKVersion, md[KeySDK])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", md[KeyTraceID])
	assert.Equal(t, "00f067aa0ba902b7", md[KeySpanID])

	assert.Empty(t, FromEvent(nil))
}

func TestFromEventTransaction(t *testing.T) {
	t.Parallel()

	md := FromEvent(event.NewTransaction("GET /"))
	assert.Equal(t, "transaction", md.EventType())
	assert.NotContains(t, md, KeyTraceID)
}
