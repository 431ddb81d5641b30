// Package event defines the Event aggregate that pipeline stages enrich and
// transports deliver.
package event

import (
	"maps"
	"slices"
	"time"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/clock"
	"github.com/drblury/faultline/internal/runtime/ids"
	"github.com/drblury/faultline/internal/runtime/severity"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
)

// Type selects which before-send hook applies to an event.
type Type string

const (
	TypeEvent       Type = "event"
	TypeTransaction Type = "transaction"
	TypeCheckIn     Type = "check_in"
	TypeMetrics     Type = "metrics"
)

const (
	SDKName    = "faultline.go"
	SDKVersion = "0.3.0"
	Platform   = "go"
)

// Well-known keys in Event.Contexts.
const (
	ContextOS      = "os"
	ContextRuntime = "runtime"
	ContextTrace   = "trace"
)

type ExceptionMechanism struct {
	Type    string         `json:"type"`
	Handled bool           `json:"handled"`
	Data    map[string]any `json:"data,omitempty"`
}

// ExceptionDataBag describes one error of a chain.
type ExceptionDataBag struct {
	Type       string                 `json:"type"`
	Value      string                 `json:"value"`
	Module     string                 `json:"module,omitempty"`
	Stacktrace *stacktrace.Stacktrace `json:"stacktrace,omitempty"`
	Mechanism  *ExceptionMechanism    `json:"mechanism,omitempty"`
}

type SDK struct {
	Name     string         `json:"name"`
	Version  string         `json:"version"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CheckInStatus string

const (
	CheckInInProgress CheckInStatus = "in_progress"
	CheckInOK         CheckInStatus = "ok"
	CheckInError      CheckInStatus = "error"
)

type CheckIn struct {
	ID          string        `json:"check_in_id"`
	MonitorSlug string        `json:"monitor_slug"`
	Status      CheckInStatus `json:"status"`
	Duration    float64       `json:"duration,omitempty"`
}

type Metric struct {
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Value float64           `json:"value"`
	Unit  string            `json:"unit,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

type Span struct {
	SpanID         string    `json:"span_id"`
	TraceID        string    `json:"trace_id,omitempty"`
	ParentSpanID   string    `json:"parent_span_id,omitempty"`
	Op             string    `json:"op,omitempty"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status,omitempty"`
	StartTimestamp time.Time `json:"start_timestamp"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event is mutated in place by pipeline stages and treated as read-only once
// handed to a transport. Only the ID is fixed at construction.
type Event struct {
	id  string
	typ Type

	Timestamp      time.Time
	StartTimestamp time.Time
	Level          severity.Severity

	Message          string
	MessageParams    []any
	MessageFormatted string

	Logger      string
	Transaction string
	ServerName  string
	Release     string
	Environment string

	Modules     map[string]string
	Request     map[string]any
	Contexts    map[string]map[string]any
	User        map[string]any
	Extra       map[string]any
	Tags        map[string]string
	Fingerprint []string

	Breadcrumbs []*breadcrumb.Breadcrumb
	Exceptions  []ExceptionDataBag
	Stacktrace  *stacktrace.Stacktrace

	CheckIn *CheckIn
	Metrics []Metric
	Spans   []Span

	SDK SDK
}

type Option func(*Event)

// WithClock sets the clock used for the creation timestamp.
func WithClock(c clock.Clock) Option {
	return func(e *Event) { e.Timestamp = clock.OrSystem(c).Now() }
}

func WithLevel(level severity.Severity) Option {
	return func(e *Event) { e.Level = level }
}

func newEvent(typ Type, opts []Option) *Event {
	e := &Event{
		id:    ids.NewEventID(),
		typ:   typ,
		Level: severity.Error,
		SDK:   SDK{Name: SDKName, Version: SDKVersion},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = clock.System().Now()
	}
	return e
}

// New creates a plain error or message event.
func New(opts ...Option) *Event {
	return newEvent(TypeEvent, opts)
}

func NewTransaction(name string, opts ...Option) *Event {
	e := newEvent(TypeTransaction, opts)
	e.Transaction = name
	e.Level = severity.Info
	e.StartTimestamp = e.Timestamp
	return e
}

func NewCheckIn(checkIn CheckIn, opts ...Option) *Event {
	e := newEvent(TypeCheckIn, opts)
	if checkIn.ID == "" {
		checkIn.ID = ids.NewEventID()
	}
	e.CheckIn = &checkIn
	e.Level = severity.Info
	return e
}

func NewMetrics(metrics []Metric, opts ...Option) *Event {
	e := newEvent(TypeMetrics, opts)
	e.Metrics = slices.Clone(metrics)
	e.Level = severity.Info
	return e
}

// ID is the 32 character lowercase hex identifier assigned at construction.
func (e *Event) ID() string { return e.id }

func (e *Event) Type() Type { return e.typ }

// Valid reports whether the event was created through one of the
// constructors.
func (e *Event) Valid() bool { return e != nil && ids.IsEventID(e.id) }

func (e *Event) SetSDKIdentifier(name string) { e.SDK.Name = name }

func (e *Event) SetSDKVersion(version string) { e.SDK.Version = version }

// SetMessage stores a printf-style template and its arguments.
func (e *Event) SetMessage(message string, params ...any) {
	e.Message = message
	e.MessageParams = params
}

// SetTag lazily allocates Tags.
func (e *Event) SetTag(key, value string) {
	if e.Tags == nil {
		e.Tags = map[string]string{}
	}
	e.Tags[key] = value
}

func (e *Event) SetExtra(key string, value any) {
	if e.Extra == nil {
		e.Extra = map[string]any{}
	}
	e.Extra[key] = value
}

// Context returns the named context, allocating it if absent.
func (e *Event) Context(name string) map[string]any {
	if e.Contexts == nil {
		e.Contexts = map[string]map[string]any{}
	}
	ctx, ok := e.Contexts[name]
	if !ok {
		ctx = map[string]any{}
		e.Contexts[name] = ctx
	}
	return ctx
}

// FillContext sets key in the named context only when it is not already
// present.
func (e *Event) FillContext(name, key string, value any) {
	ctx := e.Context(name)
	if _, ok := ctx[key]; !ok {
		ctx[key] = value
	}
}

// Clone copies the event and its collections. Nested map values and
// breadcrumbs are shared.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.MessageParams = slices.Clone(e.MessageParams)
	c.Modules = maps.Clone(e.Modules)
	c.Request = maps.Clone(e.Request)
	c.User = maps.Clone(e.User)
	c.Extra = maps.Clone(e.Extra)
	c.Tags = maps.Clone(e.Tags)
	c.Fingerprint = slices.Clone(e.Fingerprint)
	c.Breadcrumbs = slices.Clone(e.Breadcrumbs)
	c.Exceptions = slices.Clone(e.Exceptions)
	c.Metrics = slices.Clone(e.Metrics)
	c.Spans = slices.Clone(e.Spans)
	c.SDK.Metadata = maps.Clone(e.SDK.Metadata)
	if e.Contexts != nil {
		c.Contexts = make(map[string]map[string]any, len(e.Contexts))
		for k, v := range e.Contexts {
			c.Contexts[k] = maps.Clone(v)
		}
	}
	if e.CheckIn != nil {
		ci := *e.CheckIn
		c.CheckIn = &ci
	}
	return &c
}
