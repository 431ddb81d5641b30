// Package pubsub delivers events through any watermill Publisher. The broker
// backends (kafka, rabbitmq, nats, aws, http, channel, io) only construct a
// publisher and hand it to this package.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/ids"
	"github.com/drblury/faultline/internal/runtime/metadata"
	"github.com/drblury/faultline/transport"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "faultline.events"

// Options configures a Transport.
type Options struct {
	Topic        string
	Encoding     Encoding
	Compression  Compression
	Capabilities transport.Capabilities
}

// OptionsFromConfig reads the topic, encoding and compression from cfg.
func OptionsFromConfig(cfg transport.Config, caps transport.Capabilities) (Options, error) {
	enc, err := ParseEncoding(cfg.GetEncoding())
	if err != nil {
		return Options{}, err
	}
	comp, err := ParseCompression(cfg.GetCompression())
	if err != nil {
		return Options{}, err
	}
	return Options{
		Topic:        cfg.GetTopic(),
		Encoding:     enc,
		Compression:  comp,
		Capabilities: caps,
	}, nil
}

// Transport encodes events and publishes them as watermill messages.
type Transport struct {
	publisher message.Publisher
	logger    watermill.LoggerAdapter
	opts      Options

	mu     sync.RWMutex
	closed bool
}

var _ transport.Transport = (*Transport)(nil)

// New wraps publisher.
func New(publisher message.Publisher, logger watermill.LoggerAdapter, opts Options) (*Transport, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub: publisher is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingJSON
	}
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	return &Transport{publisher: publisher, logger: logger, opts: opts}, nil
}

// FromConfig is the common tail of every broker Builder.
func FromConfig(publisher message.Publisher, cfg transport.Config, logger watermill.LoggerAdapter, caps transport.Capabilities) (transport.Transport, error) {
	opts, err := OptionsFromConfig(cfg, caps)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}
	t, err := New(publisher, logger, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Options returns the effective options.
func (t *Transport) Options() Options { return t.opts }

// Capabilities reports the backend capabilities.
func (t *Transport) Capabilities() transport.Capabilities { return t.opts.Capabilities }

// Message builds the watermill message for evt without publishing it.
func (t *Transport) Message(evt *event.Event) (*message.Message, error) {
	payload, err := Encode(evt, t.opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	payload, err = Compress(payload, t.opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("compress event: %w", err)
	}
	if !t.opts.Capabilities.Fits(len(payload)) {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), t.opts.Capabilities.MaxMessageSize)
	}

	md := metadata.FromEvent(evt).Merge(metadata.New(
		metadata.KeyContentType, t.opts.Encoding.ContentType(),
		metadata.KeyContentEncoding, string(t.opts.Compression),
	))

	msg := message.NewMessage(ids.CreateULID(), payload)
	msg.Metadata = metadata.ToWatermill(md)
	return msg, nil
}

// Send encodes and publishes evt.
func (t *Transport) Send(ctx context.Context, evt *event.Event) transport.Result {
	if evt == nil || !evt.Valid() {
		return transport.Invalid("", ErrInvalidEvent)
	}
	id := evt.ID()

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return transport.Failed(id, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return transport.Failed(id, err)
	}

	msg, err := t.Message(evt)
	if err != nil {
		return transport.Invalid(id, err)
	}
	msg.SetContext(ctx)

	if err := t.publisher.Publish(t.opts.Topic, msg); err != nil {
		t.logger.Error("Failed to publish event", err, watermill.LogFields{
			"event_id": id,
			"topic":    t.opts.Topic,
		})
		return transport.Failed(id, err)
	}

	t.logger.Trace("Published event", watermill.LogFields{
		"event_id":   id,
		"message_id": msg.UUID,
		"topic":      t.opts.Topic,
	})
	return transport.Success(id)
}

// Close closes the underlying publisher once.
func (t *Transport) Close(context.Context) transport.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.Success("")
	}
	t.closed = true
	if err := t.publisher.Close(); err != nil {
		return transport.Failed("", err)
	}
	return transport.Success("")
}
