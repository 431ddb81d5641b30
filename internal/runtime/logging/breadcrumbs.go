package logging

import (
	"context"
	"log/slog"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/clock"
	"github.com/drblury/faultline/internal/runtime/severity"
)

// BreadcrumbSink receives breadcrumbs; *breadcrumb.Recorder satisfies it.
type BreadcrumbSink interface {
	Record(b *breadcrumb.Breadcrumb)
}

// BreadcrumbSinkFunc adapts a function to BreadcrumbSink.
type BreadcrumbSinkFunc func(b *breadcrumb.Breadcrumb)

func (f BreadcrumbSinkFunc) Record(b *breadcrumb.Breadcrumb) { f(b) }

// BreadcrumbHandler is an slog.Handler that turns log records at or above
// Level into breadcrumbs of category "log". Combine it with a regular
// handler to keep normal log output.
type BreadcrumbHandler struct {
	sink  BreadcrumbSink
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func NewBreadcrumbHandler(sink BreadcrumbSink, level slog.Leveler) *BreadcrumbHandler {
	if sink == nil {
		panic("faultline: breadcrumb sink cannot be nil")
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &BreadcrumbHandler{sink: sink, level: level}
}

func (h *BreadcrumbHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BreadcrumbHandler) Handle(_ context.Context, record slog.Record) error {
	data := make(map[string]any, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Resolve().Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		data[h.key(attr.Key)] = attr.Value.Resolve().Any()
		return true
	})

	opts := []breadcrumb.Option{breadcrumb.Message(record.Message), breadcrumb.Data(data)}
	if !record.Time.IsZero() {
		opts = append(opts, breadcrumb.At(clock.ToSeconds(record.Time)))
	}
	b, err := breadcrumb.New(severity.FromSlogLevel(record.Level), breadcrumb.TypeDefault, "log", opts...)
	if err != nil {
		return err
	}
	h.sink.Record(b)
	return nil
}

func (h *BreadcrumbHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *BreadcrumbHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.key(attr.Key), Value: attr.Value})
	}
	return &clone
}

func (h *BreadcrumbHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.key(name)
	return &clone
}
