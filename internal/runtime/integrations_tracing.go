package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/faultline/internal/runtime/event"
)

const tracerName = "github.com/drblury/faultline"

// TracingMiddleware links events to the active OpenTelemetry span and wraps
// the remaining pipeline in a span of its own.
func TracingMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "tracing",
		Priority: PriorityTracing,
		Builder: func(c *Client) (Stage, error) {
			tracer := otel.Tracer(tracerName)
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
					evt.FillContext(event.ContextTrace, "trace_id", sc.TraceID().String())
					evt.FillContext(event.ContextTrace, "span_id", sc.SpanID().String())
					evt.FillContext(event.ContextTrace, "sampled", sc.IsSampled())
				}

				ctx, span := tracer.Start(ctx, "faultline.capture", trace.WithSpanKind(trace.SpanKindInternal))
				defer span.End()
				span.SetAttributes(
					attribute.String("faultline.event_id", evt.ID()),
					attribute.String("faultline.event_type", string(evt.Type())),
				)

				result, err := next(ctx, evt, hint)
				switch {
				case err != nil:
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				case result == nil:
					span.SetAttributes(attribute.Bool("faultline.dropped", true))
				}
				return result, err
			}, nil
		},
	}
}

// StacktraceMiddleware attaches the capture-site stack trace to events that
// carry no exception. An explicit stack trace in the hint is always used;
// the capture site only when AttachStacktrace is set.
func StacktraceMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "stacktrace",
		Priority: PriorityStacktrace,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if evt.Stacktrace == nil && len(evt.Exceptions) == 0 && hint.Exception == nil {
					switch {
					case hint.Stacktrace != nil:
						evt.Stacktrace = hint.Stacktrace
					case c.Conf.AttachStacktrace:
						evt.Stacktrace = c.builder.BuildFrames(hint.Frames)
					}
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}
