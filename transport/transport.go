// Package transport defines the publish/subscribe backends the relay can read
// documents from and write them to. Each backend lives in its own sub-package
// and registers a Builder under its system name.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases both halves. A backend that returns the same value for both
// is closed once.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil {
		if same, ok := t.Subscriber.(message.Publisher); !ok || same != t.Publisher {
			errs = append(errs, t.Subscriber.Close())
		}
	}
	return errors.Join(errs...)
}

// Builder creates a transport from an endpoint configuration.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the values transports need. It lets backends read only
// their own settings without importing the config package.
type Config interface {
	// GetPubSubSystem returns the transport name.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// IO
	GetIOFile() string
}

// HTTPConfig is implemented by configurations that can address an HTTP
// endpoint. Builders type-assert for it so the base Config stays small.
type HTTPConfig interface {
	GetHTTPURL() string
}

// AWSConfig is implemented by configurations carrying SNS/SQS settings.
type AWSConfig interface {
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSEndpoint() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
