// Package faultline captures errors, panics and messages from Go programs and
// ships them as structured events to a collector.
//
// A Client owns a middleware stack. Every capture builds an Event, runs it
// through the stack by descending priority and, if no stage vetoed it, hands
// it to a Transport. The default chain samples, applies the client Scope,
// renders messages, converts error chains into exceptions (deepest cause
// first), attaches the current HTTP request, breadcrumbs, release and runtime
// contexts, module versions, the active OpenTelemetry span and a stack trace,
// bounds every application-supplied value through the serializer, and
// finally masks secrets and credit card numbers.
//
// A minimal setup fills a Config, creates a Client and captures:
//
//	conf := faultline.DefaultConfig()
//	conf.Transport = "http"
//	conf.DSN = "https://collector.example.com/api/1/store/"
//	client, err := faultline.New(ctx, conf)
//	if err != nil {
//		return err
//	}
//	defer client.Close(2 * time.Second)
//	defer client.Recover(ctx)
//
//	client.CaptureMessage(ctx, "payment %s declined", paymentID)
//
// # Transports
//
// Transports are selected by name from a registry. Import
// github.com/drblury/faultline/transport/transports to register every
// built-in backend:
//   - null: drops events (the default)
//   - channel: in-memory Go channels for tests
//   - http: posts events to a collector endpoint
//   - kafka, rabbitmq, nats: publish events to a broker topic
//   - aws: publish to SNS
//   - io: append JSON lines to a file
//
// Setting Config.QueueSize wraps the transport in a bounded asynchronous
// queue; Flush waits for it to drain.
//
// # Hooks
//
// Hooks.BeforeSend and its per-type variants may edit or drop events right
// before delivery. OnDrop and OnSendError report what never arrived.
// LoggingHooks, MetricsHooks and AlertingHooks provide ready-made callbacks.
//
// # Metrics
//
// With Config.MetricsEnabled the client registers Prometheus counters for
// captured, dropped and delivered events plus a pipeline latency histogram.
// Client.MetricsHandler serves them.
package faultline
