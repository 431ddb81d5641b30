// Package breadcrumb holds the immutable Breadcrumb record and the bounded
// Recorder that keeps the most recent ones for attachment to events.
package breadcrumb

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/drblury/faultline/internal/runtime/clock"
	errspkg "github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/jsoncodec"
	"github.com/drblury/faultline/internal/runtime/severity"
)

// Breadcrumb types understood by the ingestion side.
const (
	TypeDefault    = "default"
	TypeUser       = "user"
	TypeHTTP       = "http"
	TypeError      = "error"
	TypeNavigation = "navigation"
	TypeQuery      = "query"
	TypeDebug      = "debug"
)

// Breadcrumb is never mutated after construction; the With* methods return
// copies.
type Breadcrumb struct {
	level     severity.Severity
	typ       string
	category  string
	message   *string
	metadata  map[string]any
	timestamp float64
}

type Option func(*settings)

type settings struct {
	message   *string
	metadata  map[string]any
	timestamp *float64
	clock     clock.Clock
}

// Message sets the breadcrumb message.
func Message(msg string) Option {
	return func(s *settings) { s.message = &msg }
}

// Data sets the breadcrumb metadata. The map is copied.
func Data(metadata map[string]any) Option {
	return func(s *settings) { s.metadata = maps.Clone(metadata) }
}

// At pins the timestamp (float seconds since the epoch).
func At(ts float64) Option {
	return func(s *settings) { s.timestamp = &ts }
}

// UsingClock sets the clock used for the default timestamp.
func UsingClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// New builds a breadcrumb. An invalid level yields ErrInvalidSeverity.
func New(level severity.Severity, typ, category string, opts ...Option) (*Breadcrumb, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %d", errspkg.ErrInvalidSeverity, int(level))
	}
	var s settings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if typ == "" {
		typ = TypeDefault
	}
	b := &Breadcrumb{
		level:    level,
		typ:      typ,
		category: category,
		message:  s.message,
		metadata: s.metadata,
	}
	if s.timestamp != nil {
		b.timestamp = *s.timestamp
	} else {
		b.timestamp = clock.Seconds(clock.OrSystem(s.clock))
	}
	return b, nil
}

func (b *Breadcrumb) Level() severity.Severity { return b.level }
func (b *Breadcrumb) Type() string              { return b.typ }
func (b *Breadcrumb) Category() string          { return b.category }
func (b *Breadcrumb) Timestamp() float64        { return b.timestamp }

// Message returns the message and whether one was set.
func (b *Breadcrumb) Message() (string, bool) {
	if b.message == nil {
		return "", false
	}
	return *b.message, true
}

// Metadata returns a copy of the metadata map.
func (b *Breadcrumb) Metadata() map[string]any {
	return maps.Clone(b.metadata)
}

func (b *Breadcrumb) clone() *Breadcrumb {
	c := *b
	return &c
}

func (b *Breadcrumb) WithLevel(level severity.Severity) (*Breadcrumb, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %d", errspkg.ErrInvalidSeverity, int(level))
	}
	if level == b.level {
		return b, nil
	}
	c := b.clone()
	c.level = level
	return c, nil
}

func (b *Breadcrumb) WithType(typ string) *Breadcrumb {
	if typ == b.typ {
		return b
	}
	c := b.clone()
	c.typ = typ
	return c
}

func (b *Breadcrumb) WithCategory(category string) *Breadcrumb {
	if category == b.category {
		return b
	}
	c := b.clone()
	c.category = category
	return c
}

func (b *Breadcrumb) WithMessage(msg string) *Breadcrumb {
	if b.message != nil && *b.message == msg {
		return b
	}
	c := b.clone()
	c.message = &msg
	return c
}

func (b *Breadcrumb) WithoutMessage() *Breadcrumb {
	if b.message == nil {
		return b
	}
	c := b.clone()
	c.message = nil
	return c
}

// WithMetadata sets one metadata key.
func (b *Breadcrumb) WithMetadata(key string, value any) *Breadcrumb {
	if existing, ok := b.metadata[key]; ok && reflect.DeepEqual(existing, value) {
		return b
	}
	c := b.clone()
	c.metadata = maps.Clone(b.metadata)
	if c.metadata == nil {
		c.metadata = map[string]any{}
	}
	c.metadata[key] = value
	return c
}

// WithoutMetadata removes one metadata key.
func (b *Breadcrumb) WithoutMetadata(key string) *Breadcrumb {
	if _, ok := b.metadata[key]; !ok {
		return b
	}
	c := b.clone()
	c.metadata = maps.Clone(b.metadata)
	delete(c.metadata, key)
	return c
}

func (b *Breadcrumb) WithTimestamp(ts float64) *Breadcrumb {
	if ts == b.timestamp {
		return b
	}
	c := b.clone()
	c.timestamp = ts
	return c
}

type wireBreadcrumb struct {
	Type      string            `json:"type"`
	Category  string            `json:"category"`
	Level     severity.Severity `json:"level"`
	Message   *string           `json:"message,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
	Timestamp float64           `json:"timestamp"`
}

func (b *Breadcrumb) wire() wireBreadcrumb {
	return wireBreadcrumb{
		Type:      b.typ,
		Category:  b.category,
		Level:     b.level,
		Message:   b.message,
		Data:      b.metadata,
		Timestamp: b.timestamp,
	}
}

// MarshalJSON omits the message and metadata when unset.
func (b *Breadcrumb) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(b.wire())
}

// ToMap returns the wire form as a generic map, used by sanitization.
func (b *Breadcrumb) ToMap() map[string]any {
	out := map[string]any{
		"type":      b.typ,
		"category":  b.category,
		"level":     b.level.String(),
		"timestamp": b.timestamp,
	}
	if b.message != nil {
		out["message"] = *b.message
	}
	if len(b.metadata) > 0 {
		out["data"] = maps.Clone(b.metadata)
	}
	return out
}
