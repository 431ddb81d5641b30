// Package null provides a transport that drops every event. It is the default
// backend so a client can run before delivery is configured.
package null

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "null"

func init() {
	Register()
}

// Register registers the null transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NullCapabilities)
}

// Build returns a Transport.
func Build(context.Context, transport.Config, watermill.LoggerAdapter) (transport.Transport, error) {
	return Transport{}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NullCapabilities
}

// Transport discards events.
type Transport struct{}

func (Transport) Send(_ context.Context, evt *event.Event) transport.Result {
	if evt == nil {
		return transport.Skipped("")
	}
	return transport.Skipped(evt.ID())
}

func (Transport) Close(context.Context) transport.Result { return transport.Success("") }
