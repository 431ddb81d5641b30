// Package transport defines how captured events leave the process. Each
// backend (kafka, rabbitmq, aws, etc.) lives in its own sub-package and
// registers a Builder with the transport registry.
package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/event"
)

// Status classifies the outcome of a delivery attempt.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusSkipped     Status = "skipped"
	StatusRateLimited Status = "rate_limited"
	StatusInvalid     Status = "invalid"
	StatusFailed      Status = "failed"
	StatusUnknown     Status = "unknown"
)

// Result reports what happened to a single event (or to a flush/close call,
// in which case EventID is empty).
type Result struct {
	Status  Status
	EventID string
	Err     error
}

// OK reports whether the call completed without a delivery problem. Skipped
// results count as OK because nothing was expected to be delivered.
func (r Result) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusSkipped
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s(%s): %v", r.Status, r.EventID, r.Err)
	}
	return fmt.Sprintf("%s(%s)", r.Status, r.EventID)
}

// Success returns a successful delivery result.
func Success(eventID string) Result { return Result{Status: StatusSuccess, EventID: eventID} }

// Skipped returns a result for an event that was intentionally not sent.
func Skipped(eventID string) Result { return Result{Status: StatusSkipped, EventID: eventID} }

// Failed returns a failed delivery result.
func Failed(eventID string, err error) Result {
	return Result{Status: StatusFailed, EventID: eventID, Err: err}
}

// Invalid returns a result for an event the backend refused to accept.
func Invalid(eventID string, err error) Result {
	return Result{Status: StatusInvalid, EventID: eventID, Err: err}
}

// Transport delivers finished events. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, evt *event.Event) Result
	Close(ctx context.Context) Result
}

// Flusher is implemented by transports that buffer events.
type Flusher interface {
	Flush(ctx context.Context) Result
}

// Flush drains t when it buffers events. Unbuffered transports report success.
func Flush(ctx context.Context, t Transport) Result {
	if f, ok := t.(Flusher); ok {
		return f.Flush(ctx)
	}
	return Success("")
}

// Builder is the function signature for creating a transport from config.
// Each transport package provides one and registers it.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports without
// depending on the full config package.
type Config interface {
	// GetTransport returns the registered backend name.
	GetTransport() string
	GetTopic() string
	GetEncoding() string
	GetCompression() string
	GetQueueSize() int

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// ErrEventRequired is returned by wrappers handed a nil event.
var ErrEventRequired = errors.ErrEventRequired
