// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/drblury/faultline/transport/aws"
	_ "github.com/drblury/faultline/transport/channel"
	_ "github.com/drblury/faultline/transport/http"
	_ "github.com/drblury/faultline/transport/io"
	_ "github.com/drblury/faultline/transport/kafka"
	_ "github.com/drblury/faultline/transport/nats"
	_ "github.com/drblury/faultline/transport/null"
	_ "github.com/drblury/faultline/transport/rabbitmq"
)
