// Package transporttest provides in-memory helpers for testing code that
// sends events through a transport.
package transporttest

import (
	"context"
	"sync"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
)

// Config is a transport.Config backed by plain fields.
type Config struct {
	Transport          string
	Topic              string
	Encoding           string
	Compression        string
	QueueSize          int
	KafkaBrokers       []string
	KafkaClientID      string
	RabbitMQURL        string
	NATSURL            string
	HTTPURL            string
	IOFile             string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

var _ transport.Config = (*Config)(nil)

func (c *Config) GetTransport() string          { return c.Transport }
func (c *Config) GetTopic() string              { return c.Topic }
func (c *Config) GetEncoding() string           { return c.Encoding }
func (c *Config) GetCompression() string        { return c.Compression }
func (c *Config) GetQueueSize() int             { return c.QueueSize }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetKafkaClientID() string      { return c.KafkaClientID }
func (c *Config) GetRabbitMQURL() string        { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string            { return c.NATSURL }
func (c *Config) GetHTTPURL() string            { return c.HTTPURL }
func (c *Config) GetIOFile() string             { return c.IOFile }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string       { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }

// Recorder is a transport that keeps every event it is handed. Respond, when
// set, decides the result of each Send.
type Recorder struct {
	Respond func(*event.Event) transport.Result

	mu      sync.Mutex
	events  []*event.Event
	closed  bool
	flushes int
}

var (
	_ transport.Transport = (*Recorder)(nil)
	_ transport.Flusher   = (*Recorder)(nil)
)

// Send records evt.
func (r *Recorder) Send(_ context.Context, evt *event.Event) transport.Result {
	r.mu.Lock()
	r.events = append(r.events, evt)
	respond := r.Respond
	r.mu.Unlock()

	if respond != nil {
		return respond(evt)
	}
	return transport.Success(evt.ID())
}

// Flush counts the call.
func (r *Recorder) Flush(context.Context) transport.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return transport.Success("")
}

// Close marks the recorder closed.
func (r *Recorder) Close(context.Context) transport.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return transport.Success("")
}

// Events returns a copy of the recorded events in send order.
func (r *Recorder) Events() []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.Event(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent event or nil.
func (r *Recorder) Last() *event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Flushes returns how many times Flush was called.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}
