package transport

// Capabilities describes the delivery guarantees of a transport backend. The
// relay checks them at startup since run buffering relies on receiving a
// run's documents in order.
type Capabilities struct {
	// SupportsOrdering indicates messages on one topic arrive in publish order.
	SupportsOrdering bool

	// SupportsTracing indicates the transport propagates tracing headers natively.
	SupportsTracing bool

	// SupportsAck indicates the transport supports explicit message acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment (redelivery).
	SupportsNack bool

	// SupportsPartitioning indicates the transport spreads a topic over partitions.
	// Ordering then only holds per partition key.
	SupportsPartitioning bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	// Filled event pages can be large.
	MaxMessageSize int64

	// Name is the human-readable name of the transport.
	Name string
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Warnings lists the properties a relay endpoint would want but this
// transport lacks.
func (c Capabilities) Warnings() []string {
	var out []string
	if !c.SupportsOrdering {
		out = append(out, "transport does not guarantee ordering; documents of a run may arrive out of order")
	}
	if c.SupportsPartitioning {
		out = append(out, "transport is partitioned; ordering holds per run only when producers key by run")
	}
	if c.MaxMessageSize > 0 {
		out = append(out, "transport limits message size; large filled payloads may be rejected")
	}
	return out
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsTracing:      true,
		SupportsAck:          true,
		SupportsPartitioning: true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// IOCapabilities for file-based I/O transport.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
	}

	// HTTPCapabilities for the HTTP transport. Each request is answered only
	// after the message is acked, so a producer posting one document at a
	// time keeps its order.
	HTTPCapabilities = Capabilities{
		Name:             "http",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// AWSCapabilities for SNS topics consumed through SQS queues.
	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsTracing: true,
		SupportsAck:     true,
		SupportsNack:    true,
		MaxMessageSize:  262144, // SNS/SQS limit, 256KB
	}
)

// GetCapabilities returns the capabilities registered for a transport name.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
