// Package metadata holds the string headers published next to an encoded
// event.
package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata maps header names to values.
type Metadata map[string]string

// New builds headers from alternating key/value pairs. A trailing key without
// a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 1; i < len(pairs); i += 2 {
		md[pairs[i-1]] = pairs[i]
	}
	return md
}

// Clone returns an independent copy. It never returns nil.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	maps.Copy(out, m)
	return out
}

// Merge returns a copy of m overlaid with other. Empty values in other do not
// erase existing headers.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Clone()
	for k, v := range other {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func (m Metadata) EventID() string         { return m[KeyEventID] }
func (m Metadata) EventType() string       { return m[KeyEventType] }
func (m Metadata) ContentType() string     { return m[KeyContentType] }
func (m Metadata) ContentEncoding() string { return m[KeyContentEncoding] }

// FromWatermill reads headers off a published message.
func FromWatermill(md message.Metadata) Metadata {
	return Metadata(md).Clone()
}

// ToWatermill copies headers onto a message metadata map.
func ToWatermill(md Metadata) message.Metadata {
	return message.Metadata(md.Clone())
}
