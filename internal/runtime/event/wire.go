package event

import (
	"time"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/jsoncodec"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
)

type wireMessage struct {
	Message   string `json:"message,omitempty"`
	Params    []any  `json:"params,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

type wireValues[T any] struct {
	Values []T `json:"values"`
}

type wireEvent struct {
	EventID        string                    `json:"event_id"`
	Type           Type                      `json:"type,omitempty"`
	Timestamp      string                    `json:"timestamp"`
	StartTimestamp string                    `json:"start_timestamp,omitempty"`
	Level          string                    `json:"level"`
	Platform       string                    `json:"platform"`
	SDK            SDK                       `json:"sdk"`
	Logger         string                    `json:"logger,omitempty"`
	Transaction    string                    `json:"transaction,omitempty"`
	ServerName     string                    `json:"server_name,omitempty"`
	Release        string                    `json:"release,omitempty"`
	Environment    string                    `json:"environment,omitempty"`
	Message        *wireMessage              `json:"message,omitempty"`
	Modules        map[string]string         `json:"modules,omitempty"`
	Request        map[string]any            `json:"request,omitempty"`
	Contexts       map[string]map[string]any `json:"contexts,omitempty"`
	User           map[string]any            `json:"user,omitempty"`
	Extra          map[string]any            `json:"extra,omitempty"`
	Tags           map[string]string         `json:"tags,omitempty"`
	Fingerprint    []string                  `json:"fingerprint,omitempty"`

	Breadcrumbs *wireValues[*breadcrumb.Breadcrumb] `json:"breadcrumbs,omitempty"`
	Exception   *wireValues[ExceptionDataBag]       `json:"exception,omitempty"`
	Stacktrace  *stacktrace.Stacktrace              `json:"stacktrace,omitempty"`

	CheckIn *CheckIn `json:"check_in,omitempty"`
	Metrics []Metric `json:"metrics,omitempty"`
	Spans   []Span   `json:"spans,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nonEmptyContexts(in map[string]map[string]any) map[string]map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]any, len(in))
	for k, v := range in {
		if len(v) > 0 {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e *Event) wire() wireEvent {
	w := wireEvent{
		EventID:     e.id,
		Timestamp:   formatTime(e.Timestamp),
		Level:       e.Level.String(),
		Platform:    Platform,
		SDK:         e.SDK,
		Logger:      e.Logger,
		Transaction: e.Transaction,
		ServerName:  e.ServerName,
		Release:     e.Release,
		Environment: e.Environment,
		Modules:     e.Modules,
		Request:     e.Request,
		Contexts:    nonEmptyContexts(e.Contexts),
		User:        e.User,
		Extra:       e.Extra,
		Tags:        e.Tags,
		Fingerprint: e.Fingerprint,
		Stacktrace:  e.Stacktrace,
		CheckIn:     e.CheckIn,
		Metrics:     e.Metrics,
		Spans:       e.Spans,
	}
	if e.typ != TypeEvent {
		w.Type = e.typ
	}
	if !e.StartTimestamp.IsZero() {
		w.StartTimestamp = formatTime(e.StartTimestamp)
	}
	if e.Message != "" || e.MessageFormatted != "" {
		w.Message = &wireMessage{Message: e.Message, Params: e.MessageParams, Formatted: e.MessageFormatted}
	}
	if len(e.Breadcrumbs) > 0 {
		w.Breadcrumbs = &wireValues[*breadcrumb.Breadcrumb]{Values: e.Breadcrumbs}
	}
	if len(e.Exceptions) > 0 {
		w.Exception = &wireValues[ExceptionDataBag]{Values: e.Exceptions}
	}
	if e.Stacktrace.Len() == 0 {
		w.Stacktrace = nil
	}
	return w
}

// MarshalJSON emits the ingestion payload. Empty collections are left out.
func (e *Event) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(e.wire())
}

// ToMap returns the payload in generic form for encoders that need it.
func (e *Event) ToMap() (map[string]any, error) {
	return jsoncodec.ToMap(e.wire())
}
