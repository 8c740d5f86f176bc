/*
Package runtime runs the document relay: it consumes event-model documents
from one endpoint, passes them through per-run pipelines and publishes the
result to another endpoint.

# Architecture Overview

The relay is a single Watermill router handler. The inbound subscriber and
the outbound publisher come from the transport registry; the handler in
between is a Relay, which serialises documents into a pipeline.RunRouter.

## Core Service (service.go)

The Service wires together:
  - the inbound and outbound transports
  - the relay handler and its middleware chain
  - HTTP servers for /metrics and /status

A processing error is fatal: Start cancels the router and returns the error.

## Relay (relay.go)

Decodes each message, dispatches it to its run, and turns whatever the run
emits into outbound messages stamped with correlation_id and run_uid.

## Middleware (middleware.go)

  - CorrelationID: ensures message traceability
  - LogMessages: debug logging of message payloads
  - Tracer: OpenTelemetry span per message
  - Metrics: Watermill Prometheus router metrics
  - Recoverer: panic recovery

## Metrics & Status (metrics.go, status.go)

RelayMetrics counts documents by kind, open runs, buffered documents,
completed runs and failures.

# Sub-packages

  - catalog/: stores of past runs looked up for splicing
  - config/: relay configuration, endpoint address parsing and validation
  - document/: document kinds, accessors and the message codec
  - errors/: sentinel errors and error types
  - ids/: ULID generation
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: message metadata utilities
  - pipeline/: stages, the per-run pipeline and the run router
  - resolver/: external-data resolvers keyed by resource spec

# Usage Example

	cfg := config.Default()
	_ = cfg.SetEndpoints("nats://localhost:4222/raw", "kafka://localhost:9092/filled")

	svc, err := runtime.NewService(cfg, logger, ctx, runtime.ServiceDependencies{
		Pipeline: pipeline.DefaultFactory(pipeline.FactoryOptions{Resolvers: resolvers}),
	})
	if err != nil {
		return err
	}
	return svc.Start(ctx)
*/
package runtime
