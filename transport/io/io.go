// Package io appends events to a local file, one JSON document per line.
package io

import (
	"bufio"
	"context"
	"errors"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/faultline/internal/runtime/jsoncodec"
	"github.com/drblury/faultline/transport"
	"github.com/drblury/faultline/transport/pubsub"
)

// TransportName is the name used to register this transport.
const TransportName = "io"

// DefaultFilePath is the default file path if none is specified.
const DefaultFilePath = "faultline-events.log"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return &Publisher{filePath: filePath, logger: logger}, nil
}

func init() {
	Register()
}

// Register registers the I/O transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

// Build creates a new I/O transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	filePath := cfg.GetIOFile()
	if filePath == "" {
		filePath = DefaultFilePath
	}

	pub, err := PublisherFactory(filePath, logger)
	if err != nil {
		return nil, err
	}
	return pubsub.FromConfig(pub, cfg, logger, transport.IOCapabilities)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// StoredMessage is one line of the output file.
type StoredMessage struct {
	UUID     string            `json:"uuid"`
	Topic    string            `json:"topic"`
	Metadata map[string]string `json:"metadata"`
	Payload  []byte            `json:"payload"`
}

// Publisher appends messages to a file. The file is opened on the first
// publish and kept open until Close.
type Publisher struct {
	filePath string
	logger   watermill.LoggerAdapter

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

var ErrPublisherClosed = errors.New("faultline: io publisher closed")

func (p *Publisher) open() error {
	if p.file != nil {
		return nil
	}
	f, err := os.OpenFile(p.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	p.file = f
	p.w = bufio.NewWriter(f)
	if p.logger != nil {
		p.logger.Debug("Opened event file", watermill.LogFields{"path": p.filePath})
	}
	return nil
}

// Publish writes one JSON line per message and flushes before returning.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := p.open(); err != nil {
		return err
	}
	for _, msg := range messages {
		line, err := jsoncodec.Marshal(StoredMessage{
			UUID:     msg.UUID,
			Topic:    topic,
			Metadata: msg.Metadata,
			Payload:  msg.Payload,
		})
		if err != nil {
			return err
		}
		if _, err := p.w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return p.w.Flush()
}

// Close flushes and releases the file. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.file == nil {
		return nil
	}
	flushErr := p.w.Flush()
	return errors.Join(flushErr, p.file.Close())
}

// ReadFile returns every stored message in path, oldest first.
func ReadFile(path string) ([]StoredMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []StoredMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var sm StoredMessage
		if err := jsoncodec.Unmarshal(scanner.Bytes(), &sm); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, scanner.Err()
}
