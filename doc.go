// Package docrelay relays event-model documents between message brokers.
// Documents arrive one at a time from a receive endpoint, are grouped by the
// run they belong to and held until the run's stop document arrives. The
// whole run is then published to the send endpoint in arrival order, with
// externally stored data filled in and, optionally, auxiliary runs (darks,
// flats) spliced in after the start document.
//
// Service hosts a Watermill router with one handler. NewService reads both
// endpoints from Config, builds the transports from the transport registry
// and installs the default middleware chain. A minimal setup parses two
// addresses into a Config, builds a Resolvers registry, and calls Start;
// see cmd/docrelay for the complete wiring.
//
// # Transports
//
// Endpoints are addressed by URL and map onto registered transports:
//   - channel: in-memory Go channels for tests and embedding
//   - io: newline-delimited JSON files
//   - nats: NATS Core subjects
//   - kafka: topics, partitioned by run
//   - rabbitmq: durable AMQP queues
//   - http: one POST per document, or a listener when inbound
//   - aws: SNS topics, consumed through SQS queues
//
// Import github.com/bluesky/docrelay/transport/transports to register all
// of them.
//
// # Middleware
//
// The default chain covers correlation IDs, debug logging, OpenTelemetry
// tracing, Prometheus metrics and panic recovery. Errors are never retried:
// the first processing error stops the relay.
//
// # External data
//
// Resolvers are looked up by a resource's spec. JSONL files are always
// available; NATS object stores and Azure Blob containers are added when
// configured.
package docrelay
