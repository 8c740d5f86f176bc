// Package transports imports every built-in transport for registration with
// the default registry.
package transports

import (
	_ "github.com/bluesky/docrelay/transport/aws"
	_ "github.com/bluesky/docrelay/transport/channel"
	_ "github.com/bluesky/docrelay/transport/http"
	_ "github.com/bluesky/docrelay/transport/io"
	_ "github.com/bluesky/docrelay/transport/kafka"
	_ "github.com/bluesky/docrelay/transport/nats"
	_ "github.com/bluesky/docrelay/transport/rabbitmq"
)
