// Package http posts events to an ingestion endpoint.
package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/faultline/internal/runtime/metadata"
	"github.com/drblury/faultline/transport"
	"github.com/drblury/faultline/transport/pubsub"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

const (
	// HeaderAuth carries the public key taken from the DSN user.
	HeaderAuth = "X-Faultline-Auth"
	// DefaultTimeout bounds a single POST.
	DefaultTimeout = 10 * time.Second
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	Register()
}

// Register registers the HTTP transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP transport. The endpoint comes from the HTTP URL
// setting or, when that is empty, from the DSN. Credentials in the URL are
// moved into the auth header and never sent as basic auth.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	endpoint, auth, err := parseEndpoint(cfg.GetHTTPURL())
	if err != nil {
		return nil, err
	}

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: marshalMessage(endpoint, auth),
			Client:             &nethttp.Client{Timeout: DefaultTimeout},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return pubsub.FromConfig(publisher, cfg, logger, transport.HTTPCapabilities)
}

func parseEndpoint(raw string) (string, string, error) {
	if raw == "" {
		return "", "", fmt.Errorf("http: URL or DSN is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("http: parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("http: unsupported scheme %q", u.Scheme)
	}
	auth := ""
	if u.User != nil {
		auth = "key=" + u.User.Username()
		u.User = nil
	}
	return u.String(), auth, nil
}

func marshalMessage(endpoint, auth string) http.MarshalMessageFunc {
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		req, err := http.DefaultMarshalMessageFunc(endpoint, msg)
		if err != nil {
			return nil, err
		}
		md := metadata.FromWatermill(msg.Metadata)
		if ct := md.ContentType(); ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		if enc := md.ContentEncoding(); enc != "" && enc != string(pubsub.CompressionNone) {
			req.Header.Set("Content-Encoding", enc)
		}
		if auth != "" {
			req.Header.Set(HeaderAuth, auth)
		}
		req = req.WithContext(msg.Context())
		return req, nil
	}
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
